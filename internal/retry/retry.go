package retry

import (
	"context"
	"time"
)

// Policy bounds retries of an outbound call: a fixed number of attempts
// with exponential backoff between them.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Default matches the retry envelope used across all external calls:
// 3 attempts, 1s initial backoff doubling up to a 10s cap.
var Default = Policy{Attempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}

// Do runs op until it succeeds, the attempts are exhausted, or the context
// is done. The last error is returned.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var err error
	for i := 0; i < attempts; i++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = op(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
