// Package liveness tracks session progress and detects a stuck session.
package liveness

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vshulcz/dslbridge/internal/domain"
)

// Monitor records the time of the last forward progress. Mark never blocks:
// the notification channel holds at most one pending wakeup.
type Monitor struct {
	now      func() time.Time
	notify   chan struct{}
	halted   chan struct{}
	last     atomic.Int64
	haltOnce sync.Once
}

// New returns a Monitor whose last progress is the time of creation.
func New() *Monitor {
	m := &Monitor{
		now:    time.Now,
		notify: make(chan struct{}, 1),
		halted: make(chan struct{}),
	}
	m.last.Store(m.now().UnixNano())
	return m
}

// Mark records forward progress and wakes the watchdog.
func (m *Monitor) Mark() {
	m.last.Store(m.now().UnixNano())
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Halt tells the watchdog that the session-driving path has returned.
// Calling it more than once is harmless.
func (m *Monitor) Halt() {
	m.haltOnce.Do(func() { close(m.halted) })
}

// LastProgress returns the time of the most recent Mark.
func (m *Monitor) LastProgress() time.Time {
	return time.Unix(0, m.last.Load())
}

// Age returns how long ago progress was last marked.
func (m *Monitor) Age() time.Duration {
	return m.now().Sub(m.LastProgress())
}

// Watch blocks until no progress was marked for deadline, the session path
// halted, or ctx is done. It returns domain.ErrLivenessTimeout,
// domain.ErrSessionExited or ctx.Err() respectively.
func (m *Monitor) Watch(ctx context.Context, deadline time.Duration) error {
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.halted:
			return domain.ErrSessionExited
		case <-m.notify:
			timer.Reset(deadline)
		case <-timer.C:
			return domain.ErrLivenessTimeout
		}
	}
}
