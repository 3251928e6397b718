package misc

import (
	"context"
	"time"
)

// DefaultBackoff is used for infrastructure dependencies (database, NATS).
// The device session never retries through this helper.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	3 * time.Second,
	5 * time.Second,
}

// RetryNotifyFunc is called before sleeping ahead of the next attempt.
type RetryNotifyFunc func(attempt int, err error, wait time.Duration)

func Retry(ctx context.Context, delays []time.Duration, isRetryable func(error) bool, op func() error) error {
	return RetryNotify(ctx, delays, isRetryable, op, nil)
}

// RetryNotify runs op until it succeeds, returns a non-retryable error,
// exhausts delays or ctx is done.
func RetryNotify(ctx context.Context, delays []time.Duration, isRetryable func(error) bool, op func() error, notify RetryNotifyFunc) error {
	var err error
	for i := 0; ; i++ {
		if err = op(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i >= len(delays) || isRetryable == nil || !isRetryable(err) {
			return err
		}
		if notify != nil {
			notify(i+1, err, delays[i])
		}
		t := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
