package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// RetryPolicy bounds how often and how slowly an operation is retried.
// Zero fields take the defaults of DefaultRetryPolicy.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = d.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	return p
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Retry returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a Permanent error, the attempts
// are exhausted or ctx is done. Delays double from InitialDelay up to
// MaxDelay with ±10% jitter.
func Retry(ctx context.Context, name string, policy RetryPolicy, fn func(ctx context.Context) error) error {
	policy = policy.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if attempt == policy.MaxAttempts {
			break
		}
		delay := policy.Delay(attempt)
		logger.Warn("operation failed, retrying",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", delay,
			"error", lastErr,
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry aborted: %w", name, ctx.Err())
		}
	}
	return fmt.Errorf("%s: %d attempts failed: %w", name, policy.MaxAttempts, lastErr)
}

// Delay is the wait after the given failed attempt (1-based): InitialDelay
// doubled per attempt, capped at MaxDelay, with ±10% jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 32 {
		attempt = 32
	}
	d := p.InitialDelay << (attempt - 1)
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	jitter := time.Duration(float64(d) * 0.1 * (2*rand.Float64() - 1))
	d += jitter
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
