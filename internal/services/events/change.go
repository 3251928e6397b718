package events

import (
	"context"

	"github.com/vshulcz/dslbridge/internal/domain"
)

// Change is the audit record of a poll that published at least one output.
type Change struct {
	Values    domain.Snapshot `json:"values"`
	Published []string        `json:"published"`
	Timestamp int64           `json:"ts"`
	Session   uint64          `json:"session"`
}

// ChangeFrom builds the record for res. It reports false when the poll published nothing.
func ChangeFrom(ctx context.Context, res domain.PollResult) (Change, bool) {
	if len(res.Published) == 0 {
		return Change{}, false
	}
	return Change{
		Values:    res.Snapshot,
		Published: res.Published,
		Timestamp: res.Timestamp.Unix(),
		Session:   SessionFromContext(ctx),
	}, true
}
