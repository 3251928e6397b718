// Package publisher pushes changed metric outputs to the bus.
package publisher

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/internal/ports"
	"github.com/vshulcz/dslbridge/internal/services/discovery"
)

// Output names, matching the topic suffixes they are published to.
const (
	OutputState      = "state"
	OutputAttributes = "attributes"
)

// Publisher remembers the last payload sent per output and only publishes
// outputs whose payload changed. It is not safe for concurrent use; the
// session calls it synchronously after each poll.
type Publisher struct {
	bus    ports.Bus
	logger *zap.Logger
	topics map[string]string
	last   map[string]string
}

// New returns a Publisher writing to the state and attributes topics.
func New(bus ports.Bus, topics discovery.Topics, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		bus:    bus,
		logger: logger.With(zap.String("component", "publisher")),
		topics: map[string]string{
			OutputState:      topics.State,
			OutputAttributes: topics.Attributes,
		},
		last: make(map[string]string, 2),
	}
}

// Publish sends every output of snap that differs from what was last sent,
// retained. It returns the outputs actually published. A failed publish is
// logged, leaves the record untouched and is reported in the joined error.
func (p *Publisher) Publish(snap domain.Snapshot) ([]string, error) {
	payloads, err := Payloads(snap)
	if err != nil {
		return nil, err
	}

	var (
		published []string
		errs      []error
	)
	for _, out := range []string{OutputState, OutputAttributes} {
		payload, ok := payloads[out]
		if !ok {
			continue
		}
		if prev, seen := p.last[out]; seen && prev == payload {
			continue
		}
		if err := p.bus.Publish(p.topics[out], []byte(payload), true); err != nil {
			p.logger.Warn("publish failed", zap.String("output", out), zap.Error(err))
			errs = append(errs, fmt.Errorf("publish %s: %w", out, err))
			continue
		}
		p.last[out] = payload
		published = append(published, out)
	}
	return published, errors.Join(errs...)
}

// Payloads derives the per-output payloads of a snapshot. The state output
// is missing while no state is known; attributes always hold a JSON object,
// possibly empty.
func Payloads(snap domain.Snapshot) (map[string]string, error) {
	out := make(map[string]string, 2)
	if st, ok := snap.State(); ok {
		out[OutputState] = st
	}
	attrs, err := json.Marshal(snap.Attributes())
	if err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	out[OutputAttributes] = string(attrs)
	return out, nil
}
