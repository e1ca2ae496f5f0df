// Package retry wraps a holdings producer with semantic-aware retry: an
// attempt is re-run not only when it errors, but also when it succeeds with
// unusable content. It holds no fund-specific knowledge.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/use-agent/treasury/models"
)

// Completable is the record shape the policy can judge: anything that can
// report whether it carries usable data.
type Completable interface {
	Complete() bool
}

// Config tunes one retry cycle.
type Config struct {
	// MaxAttempts is the total invocation budget. Default 3.
	MaxAttempts int

	// MinWait is the first backoff interval. Default 4s.
	MinWait time.Duration

	// MaxWait caps the backoff interval. Default 10s.
	MaxWait time.Duration

	// Notify, when set, observes each failed attempt and the upcoming wait.
	Notify func(err error, wait time.Duration)
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.MinWait <= 0 {
		c.MinWait = 4 * time.Second
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 10 * time.Second
	}
	return c
}

// Do invokes produce until it yields a complete record or the attempt budget
// is exhausted, backing off exponentially between attempts.
//
// Outcome classification per attempt:
//   - produce returned an error: retryable. The policy does not distinguish
//     pipeline error kinds here, with one exception: an authentication
//     failure from the extraction service cannot heal within an attempt
//     budget, so it stops the cycle immediately.
//   - produce succeeded but the record is incomplete: retryable validation
//     failure. Success alone is not acceptance; the content must be usable.
//   - otherwise: accepted and returned at once.
//
// On exhaustion the last attempt's error is returned unmodified, so callers
// see the root cause rather than a retry wrapper.
func Do[T Completable](ctx context.Context, produce func(context.Context) (T, error), cfg Config) (T, error) {
	cfg = cfg.withDefaults()

	operation := func() (T, error) {
		var zero T
		rec, err := produce(ctx)
		if err != nil {
			if models.HasCode(err, models.ErrCodeLLMAuthFailure) {
				return zero, backoff.Permanent(err)
			}
			return zero, err
		}
		if !rec.Complete() {
			return zero, models.NewExtractError(models.ErrCodeValidation,
				"missing bitcoin quantity", nil)
		}
		return rec, nil
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(NewBackOff(cfg)),
		backoff.WithMaxTries(uint(cfg.MaxAttempts)),
	}
	if cfg.Notify != nil {
		opts = append(opts, backoff.WithNotify(cfg.Notify))
	}

	return backoff.Retry(ctx, operation, opts...)
}

// NewBackOff builds the wait schedule: exponential doubling from MinWait,
// capped at MaxWait. Jitter is disabled so successive waits are
// deterministic and non-decreasing.
func NewBackOff(cfg Config) *backoff.ExponentialBackOff {
	cfg = cfg.withDefaults()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.MinWait
	b.Multiplier = 2
	b.MaxInterval = cfg.MaxWait
	b.RandomizationFactor = 0
	b.Reset()
	return b
}
