package events

import "context"

type ctxKey string

const sessionKey ctxKey = "session_attempt"

// WithSession tags ctx with the supervisor attempt number of the session that produced an event.
func WithSession(ctx context.Context, attempt uint64) context.Context {
	return context.WithValue(ctx, sessionKey, attempt)
}

// SessionFromContext returns the attempt number set by WithSession, or zero.
func SessionFromContext(ctx context.Context) uint64 {
	if ctx == nil {
		return 0
	}
	v, _ := ctx.Value(sessionKey).(uint64)
	return v
}
