package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

// Sentinel errors for retry logic.
var (
	ErrRetryable = &anchorerr.AnchorError{
		Code:     "RETRYABLE_ERROR",
		Message:  "retryable error",
		ExitCode: anchorerr.ExitUnavailable,
	}

	ErrRateLimited = &anchorerr.AnchorError{
		Code:     "RATE_LIMITED",
		Message:  "rate limited",
		ExitCode: anchorerr.ExitUnavailable,
	}
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts (including initial)
	BaseDelay   time.Duration // Initial delay between retries
	MaxDelay    time.Duration // Maximum delay between retries
}

// DefaultRetryConfig returns 3 attempts with delays of 500ms and 1s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// RateLimitedError is a rate-limited reply. After is the wait the server
// asked for, or zero when it gave none.
type RateLimitedError struct {
	After time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.After <= 0 {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited.Error(), e.After)
}

// Unwrap makes a RateLimitedError match ErrRateLimited.
func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// Retry runs operation until it succeeds, fails with a non-retryable error,
// or cfg.MaxAttempts is reached. Between attempts it backs off exponentially,
// waiting longer when a rate-limited reply asks for it, up to cfg.MaxDelay.
func Retry[T any](ctx context.Context, cfg RetryConfig, operation func() (T, error)) (T, error) {
	for attempt := 1; ; attempt++ {
		result, err := operation()
		if err == nil || !IsRetryable(err) {
			return result, err
		}
		if attempt >= cfg.MaxAttempts {
			return result, fmt.Errorf("operation failed after %d attempts: %w", attempt, err)
		}
		if serr := sleep(ctx, cfg.delay(attempt-1, err)); serr != nil {
			return result, serr
		}
	}
}

// delay returns the wait before the retry following attempt.
func (cfg RetryConfig) delay(attempt int, err error) time.Duration {
	d := backoff(attempt, cfg.BaseDelay, cfg.MaxDelay)
	var limited *RateLimitedError
	if errors.As(err, &limited) && limited.After > d {
		d = min(limited.After, cfg.MaxDelay)
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff returns an exponential delay with jitter in [delay/2, delay).
func backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	delay := base * (1 << attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	half := delay / 2
	if half <= 0 {
		return delay
	}
	return half + time.Duration(rand.Int63n(int64(half))) //nolint:gosec // G404: jitter does not need crypto randomness
}

// IsRetryable reports whether err should trigger another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRetryable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}

// WrapRetryable marks err as retryable.
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRetryable, err)
}
