package bridge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/internal/parser"
	"github.com/vshulcz/dslbridge/internal/ports"
	"github.com/vshulcz/dslbridge/internal/services/events"
)

// Prompts and commands of the modem shell.
var (
	PromptLogin    = []byte("login:")
	PromptPassword = []byte("word:")
	PromptShell    = []byte("# ")

	CmdInterfaces = []byte("ifconfig\n")
	CmdLineState  = []byte("dsl_cpe_pipe.sh lsg\n")
)

// SessionConfig holds the device credentials and polling parameters.
type SessionConfig struct {
	Username       string
	Password       string
	Interface      string
	UpdateInterval time.Duration
}

// Session speaks the login and polling protocol over one device connection.
type Session struct {
	state  *State
	logger *zap.Logger
	now    func() time.Time
	cfg    SessionConfig
}

// NewSession binds a session to the shared state.
func NewSession(cfg SessionConfig, st *State, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		cfg:    cfg,
		state:  st,
		logger: logger.With(zap.String("component", "session")),
		now:    time.Now,
	}
}

// Run logs in and polls until the connection fails or ctx is done. It always
// returns a non-nil error; closing conn is left to the caller.
func (s *Session) Run(ctx context.Context, conn ports.DeviceConn) error {
	if err := s.login(conn); err != nil {
		return err
	}
	s.logger.Info("logged in")

	for {
		if err := s.poll(ctx, conn); err != nil {
			return err
		}
		if err := sleep(ctx, s.cfg.UpdateInterval); err != nil {
			return err
		}
	}
}

func (s *Session) login(conn ports.DeviceConn) error {
	if err := s.answer(conn, PromptLogin, s.cfg.Username); err != nil {
		return fmt.Errorf("username: %w", err)
	}
	if err := s.answer(conn, PromptPassword, s.cfg.Password); err != nil {
		return fmt.Errorf("password: %w", err)
	}
	if _, err := s.waitPrompt(conn); err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	return nil
}

func (s *Session) answer(conn ports.DeviceConn, prompt []byte, value string) error {
	if _, err := conn.ReadUntil(prompt); err != nil {
		return err
	}
	if err := conn.DiscardEager(); err != nil {
		return err
	}
	if err := conn.Write([]byte(value + "\n")); err != nil {
		return err
	}
	s.state.Monitor.Mark()
	return nil
}

func (s *Session) waitPrompt(conn ports.DeviceConn) ([]byte, error) {
	out, err := conn.ReadUntil(PromptShell)
	if err != nil {
		return nil, err
	}
	s.state.Monitor.Mark()
	return out, nil
}

// command issues cmd and returns its output together with the time it was sent.
func (s *Session) command(conn ports.DeviceConn, cmd []byte) ([]byte, time.Time, error) {
	if err := conn.DiscardEager(); err != nil {
		return nil, time.Time{}, err
	}
	if err := conn.Write(cmd); err != nil {
		return nil, time.Time{}, err
	}
	s.state.Monitor.Mark()
	at := s.now()
	out, err := s.waitPrompt(conn)
	if err != nil {
		return nil, at, fmt.Errorf("%q: %w", cmd, err)
	}
	return out, at, nil
}

func (s *Session) poll(ctx context.Context, conn ports.DeviceConn) error {
	rec := s.state.recorder()
	started := time.Now()

	ifOut, at, err := s.command(conn, CmdInterfaces)
	if err != nil {
		return err
	}
	lsOut, _, err := s.command(conn, CmdLineState)
	if err != nil {
		return err
	}

	updates := make(map[string]any, 3)
	if samples, err := parser.Counters(ifOut, s.cfg.Interface, at); err != nil {
		s.logger.Warn("interface counters not parsed", zap.Int("bytes", len(ifOut)), zap.Error(err))
		rec.ParseFailed("interfaces")
	} else {
		for _, smp := range samples {
			if r, ok := s.state.Rates.Compute(smp); ok {
				updates[domain.RateKey(smp.Name)] = r
			}
		}
	}
	if ls, err := parser.LineState(lsOut); err != nil {
		s.logger.Warn("line state not parsed", zap.Int("bytes", len(lsOut)), zap.Error(err))
		rec.ParseFailed("line_state")
	} else {
		updates[domain.KeyState] = ls.String()
		s.logger.Debug("line state", zap.String("state", ls.String()), zap.String("code", ls.Hex()))
	}

	s.state.Store.Apply(updates)
	snap := s.state.Store.Snapshot()
	published, err := s.state.Publisher.Publish(snap)
	if err != nil {
		s.logger.Warn("publish incomplete", zap.Strings("published", published), zap.Error(err))
	}
	s.state.Monitor.Mark()
	rec.PollCompleted(time.Since(started))

	res := domain.PollResult{Timestamp: at, Snapshot: snap, Published: published}
	if err := s.state.Polls.Publish(ctx, res); err != nil {
		s.logger.Warn("poll observers failed", zap.Uint64("session", events.SessionFromContext(ctx)), zap.Error(err))
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
