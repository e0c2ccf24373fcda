package payment

import (
	"context"
	"time"
)

// RetryPolicy bounds gateway call retries: a fixed attempt budget with a
// linear backoff schedule. The sleeper is injectable so tests run without
// waiting.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       func(time.Duration)
}

// DefaultRetryPolicy mirrors the worker startup retry loop: small attempt
// budget, delay growing with the attempt number.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Sleep:       time.Sleep,
	}
}

// Do runs op until it succeeds, the attempt budget is exhausted, or ctx is
// done. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		sleep(time.Duration(attempt) * p.BaseDelay)
	}
	return err
}
