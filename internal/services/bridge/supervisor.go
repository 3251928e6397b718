package bridge

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vshulcz/dslbridge/internal/ports"
	"github.com/vshulcz/dslbridge/internal/services/events"
)

// Supervisor keeps a device session alive. When a session ends it dials again
// at once: there is no backoff and no retry limit, the connect latency of an
// unreachable device is the only pacing.
type Supervisor struct {
	dialer   ports.DeviceDialer
	state    *State
	session  *Session
	logger   *zap.Logger
	addr     string
	attempts atomic.Uint64
}

// NewSupervisor returns a supervisor dialing addr.
func NewSupervisor(addr string, dialer ports.DeviceDialer, st *State, sess *Session, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		addr:    addr,
		dialer:  dialer,
		state:   st,
		session: sess,
		logger:  logger.With(zap.String("component", "supervisor"), zap.String("device", addr)),
	}
}

// Attempts reports how many sessions have been started.
func (s *Supervisor) Attempts() uint64 { return s.attempts.Load() }

// Run restarts sessions until ctx is done. On return it halts the liveness
// monitor so the watchdog does not wait out its deadline.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.state.Monitor.Halt()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := s.attempts.Add(1)
		err := s.runOnce(events.WithSession(ctx, n), n)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.state.recorder().SessionFailed()
		s.logger.Warn("session ended, reconnecting", zap.Uint64("session", n), zap.Error(err))
	}
}

func (s *Supervisor) runOnce(ctx context.Context, n uint64) error {
	conn, err := s.dialer.Dial(ctx, s.addr)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	s.state.recorder().SessionStarted()
	s.logger.Info("device connected", zap.Uint64("session", n))

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		if cerr := conn.Close(); cerr != nil {
			s.logger.Debug("close device connection", zap.Error(cerr))
		}
	}()

	return s.session.Run(ctx, conn)
}
