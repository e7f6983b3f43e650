// Package retry implements exponential backoff retry for transient failures
// and a persistent offline queue for requests that must survive restarts.
package retry

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"
)

// Config controls the backoff schedule.
type Config struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultConfig returns the schedule used for emergency notification retries.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		InitialDelay:  2 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2,
	}
}

// Delay returns the backoff delay before retry attempt n (0-based):
// min(InitialDelay * BackoffFactor^n, MaxDelay).
func (c Config) Delay(attempt int) time.Duration {
	d := time.Duration(float64(c.InitialDelay) * math.Pow(c.BackoffFactor, float64(attempt)))
	if d > c.MaxDelay || d < 0 {
		return c.MaxDelay
	}
	return d
}

// Sleeper abstracts waiting between attempts so tests can capture delays
// instead of sleeping.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper waits on a real timer, aborting early if the context is
// cancelled.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so Do returns it immediately instead of retrying.
// Validation and other client-side failures do not improve with repetition.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Coordinator runs operations with retries and exponential backoff.
type Coordinator struct {
	cfg     Config
	sleeper Sleeper
	waiting atomic.Int32
}

// NewCoordinator creates a Coordinator. A nil sleeper defaults to real timers.
func NewCoordinator(cfg Config, sleeper Sleeper) *Coordinator {
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	return &Coordinator{cfg: cfg, sleeper: sleeper}
}

// Do runs fn up to MaxRetries+1 times, sleeping between attempts according to
// the backoff schedule. The first call is immediate. It returns nil as soon as
// fn succeeds, the last error once attempts are exhausted, or the context
// error if cancelled while waiting.
func (c *Coordinator) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}

		if attempt >= c.cfg.MaxRetries {
			return lastErr
		}

		c.waiting.Add(1)
		err := c.sleeper.Sleep(ctx, c.cfg.Delay(attempt))
		c.waiting.Add(-1)
		if err != nil {
			return err
		}
	}
}

// IsRetrying reports whether any operation is currently waiting out a backoff
// delay. Callers surface it as progress feedback.
func (c *Coordinator) IsRetrying() bool {
	return c.waiting.Load() > 0
}

// DoValue is like Do for operations that produce a value.
func DoValue[T any](ctx context.Context, c *Coordinator, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := c.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}
