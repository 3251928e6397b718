package events

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/pkg/observer"
)

// PollPublisher accepts poll results from the session.
type PollPublisher = observer.Publisher[domain.PollResult]

// ErrPollDropped is returned by PollQueue.Publish when the queue is full.
var ErrPollDropped = errors.New("poll queue full, result dropped")

const defaultQueueSize = 16

type queuedPoll struct {
	res     domain.PollResult
	session uint64
}

// PollQueue hands poll results to a subject on a single worker goroutine,
// so slow observers never hold up the session. Results are dropped while
// the queue is full.
type PollQueue struct {
	subj    *PollSubject
	queue   chan queuedPoll
	dropped atomic.Uint64
}

var _ PollPublisher = (*PollQueue)(nil)

// NewPollQueue creates a queue of the given size in front of subj. A
// non-positive size uses 16.
func NewPollQueue(subj *PollSubject, size int) *PollQueue {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &PollQueue{subj: subj, queue: make(chan queuedPoll, size)}
}

// Publish enqueues res without blocking. The session number of ctx travels
// with it.
func (q *PollQueue) Publish(ctx context.Context, res domain.PollResult) error {
	select {
	case q.queue <- queuedPoll{res: res, session: SessionFromContext(ctx)}:
		return nil
	default:
		q.dropped.Add(1)
		return ErrPollDropped
	}
}

// Run delivers queued results until ctx is done. Observer errors go to the
// subject's error handler.
func (q *PollQueue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-q.queue:
			_ = q.subj.Publish(WithSession(ctx, p.session), p.res)
		}
	}
}

// Dropped reports how many results were discarded on a full queue.
func (q *PollQueue) Dropped() uint64 { return q.dropped.Load() }
