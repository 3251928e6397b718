package discovery

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/internal/ports"
)

// Announcer republishes the registration payload and the online marker every
// time the bus (re)connects. Attach it to the connectivity subject before
// connecting the bus.
type Announcer struct {
	bus     ports.Bus
	logger  *zap.Logger
	topics  Topics
	payload []byte
}

// NewAnnouncer encodes the registration payload of s once.
func NewAnnouncer(bus ports.Bus, s Sensor, logger *zap.Logger) (*Announcer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	payload, err := json.Marshal(s.Config())
	if err != nil {
		return nil, fmt.Errorf("encode discovery config: %w", err)
	}
	return &Announcer{
		bus:     bus,
		logger:  logger.With(zap.String("component", "discovery")),
		topics:  s.Topics(),
		payload: payload,
	}, nil
}

// Notify publishes config then availability on connect; disconnects are ignored.
func (a *Announcer) Notify(_ context.Context, evt domain.ConnEvent) error {
	if !evt.Connected {
		return nil
	}
	if err := a.bus.Publish(a.topics.Config, a.payload, true); err != nil {
		return fmt.Errorf("announce config: %w", err)
	}
	if err := a.bus.Publish(a.topics.Status, []byte(PayloadOnline), true); err != nil {
		return fmt.Errorf("announce online: %w", err)
	}
	a.logger.Info("announced", zap.String("topic", a.topics.Config))
	return nil
}
