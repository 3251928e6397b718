// Package bridge drives the modem session and keeps it running.
package bridge

import (
	"time"

	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/internal/ports"
	"github.com/vshulcz/dslbridge/internal/services/events"
	"github.com/vshulcz/dslbridge/internal/services/liveness"
	"github.com/vshulcz/dslbridge/internal/services/rate"
)

// Publisher pushes changed outputs of a snapshot and reports which were sent.
type Publisher interface {
	Publish(snap domain.Snapshot) ([]string, error)
}

// State is everything that outlives a single device session. The supervisor
// owns it; sessions and the watchdog only borrow it.
type State struct {
	Store     ports.MetricStore
	Rates     *rate.Calculator
	Publisher Publisher
	Monitor   *liveness.Monitor
	Polls     events.PollPublisher
	Recorder  ports.Recorder
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted()             {}
func (nopRecorder) SessionFailed()              {}
func (nopRecorder) PollCompleted(time.Duration) {}
func (nopRecorder) ParseFailed(string)          {}

func (s *State) recorder() ports.Recorder {
	if s.Recorder == nil {
		return nopRecorder{}
	}
	return s.Recorder
}
