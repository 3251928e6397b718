// Package events names the in-process event streams of the bridge.
package events

import (
	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/pkg/observer"
)

// ConnObserver receives bus connectivity changes.
type ConnObserver = observer.Observer[domain.ConnEvent]

// ConnObserverFunc adapts a plain function to ConnObserver.
type ConnObserverFunc = observer.ObserverFunc[domain.ConnEvent]

// ConnSubject fans out bus connectivity changes.
type ConnSubject = observer.Subject[domain.ConnEvent]

// PollObserver receives the outcome of every poll cycle.
type PollObserver = observer.Observer[domain.PollResult]

// PollObserverFunc adapts a plain function to PollObserver.
type PollObserverFunc = observer.ObserverFunc[domain.PollResult]

// PollSubject fans out poll results to sinks and recorders.
type PollSubject = observer.Subject[domain.PollResult]

// NewConnSubject creates a connectivity subject optionally pre-populated with observers.
func NewConnSubject(observers ...ConnObserver) *ConnSubject {
	return observer.NewSubject[domain.ConnEvent](observers...)
}

// NewPollSubject creates a poll subject optionally pre-populated with observers.
func NewPollSubject(observers ...PollObserver) *PollSubject {
	return observer.NewSubject[domain.PollResult](observers...)
}
