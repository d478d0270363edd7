package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/reddit-research-bot/pkg/errors"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
)

// BackoffFunc returns the wait before retry number attempt (1-based), given the
// error that triggered it.
type BackoffFunc func(attempt int, err error) time.Duration

type Config struct {
	MaxRetries uint64
	Backoff    BackoffFunc
	// Retryable decides whether err deserves another attempt. Nil retries everything.
	Retryable func(err error) bool
	// Clock drives the waits between attempts. Nil means the real clock.
	Clock clockwork.Clock
}

func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		Backoff:    Linear(2 * time.Second),
	}
}

// Linear waits step, 2*step, 3*step, ...
func Linear(step time.Duration) BackoffFunc {
	return func(attempt int, _ error) time.Duration {
		return time.Duration(attempt) * step
	}
}

// LinearBlocked behaves like Linear but uses blockedStep when the upstream
// answered with a rate-limit or forbidden status.
func LinearBlocked(step, blockedStep time.Duration) BackoffFunc {
	return func(attempt int, err error) time.Duration {
		if errors.IsBlocked(err) {
			return time.Duration(attempt) * blockedStep
		}
		return time.Duration(attempt) * step
	}
}

// Do runs operation until it succeeds, returns a non-retryable error, runs out of
// retries or ctx is done. The last error is returned unwrapped.
func Do(ctx context.Context, log logger.Logger, operationName string, operation func() error, cfg Config) error {
	if cfg.Backoff == nil {
		cfg.Backoff = DefaultConfig().Backoff
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	bo := &funcBackOff{fn: cfg.Backoff}

	retryable := backoff.WithMaxRetries(bo, cfg.MaxRetries)
	retryableWithContext := backoff.WithContext(retryable, ctx)

	op := func() error {
		err := operation()
		if err == nil {
			return nil
		}
		bo.lastErr = err
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, t time.Duration) {
		log.Warn(
			"Operation failed, retrying...",
			"operation", operationName,
			"error", err,
			"next_attempt_in", t.Round(time.Millisecond).String(),
		)
	}

	return backoff.RetryNotifyWithTimer(op, retryableWithContext, notify, &clockTimer{clock: cfg.Clock})
}

// Sleep waits for d on clock, returning early with ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}

type funcBackOff struct {
	fn      BackoffFunc
	attempt int
	lastErr error
}

func (b *funcBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.fn(b.attempt, b.lastErr)
}

func (b *funcBackOff) Reset() {
	b.attempt = 0
	b.lastErr = nil
}

type clockTimer struct {
	clock clockwork.Clock
	timer clockwork.Timer
	fired chan time.Time
}

func (t *clockTimer) Start(d time.Duration) {
	if d <= 0 {
		t.timer = nil
		t.fired = make(chan time.Time, 1)
		t.fired <- t.clock.Now()
		return
	}
	t.timer = t.clock.NewTimer(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	if t.timer == nil {
		return t.fired
	}
	return t.timer.Chan()
}
