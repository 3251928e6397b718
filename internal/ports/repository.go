package ports

import (
	"context"
	"time"

	"github.com/vshulcz/dslbridge/internal/domain"
)

// MetricStore holds the latest value per metric key.
type MetricStore interface {
	Set(key string, value any)
	Apply(values map[string]any)
	Snapshot() domain.Snapshot
}

// SnapshotSink keeps the latest snapshot outside the process.
type SnapshotSink interface {
	Save(ctx context.Context, s domain.Snapshot) error
	Restore(ctx context.Context) (domain.Snapshot, error)
}

// Recorder receives operational measurements from the session path.
type Recorder interface {
	SessionStarted()
	SessionFailed()
	PollCompleted(took time.Duration)
	ParseFailed(what string)
}
