package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"dailysignal/pkg/faults"
)

const (
	defaultAttempts   = 3
	defaultBase       = time.Second
	defaultMaxBackoff = 30 * time.Second
	defaultMultiplier = 2.0
)

// ErrExhausted is returned (wrapped) once every attempt has failed.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Classifier decides whether an error is worth another attempt.
type Classifier func(error) bool

// Policy encapsulates bounded exponential backoff.
type Policy struct {
	Attempts   int
	Base       time.Duration
	MaxBackoff time.Duration
	Multiplier float64
	Retryable  Classifier

	sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the pipeline policy: 3 attempts, 1s base, doubling.
func Default() Policy {
	return New(Policy{})
}

// New fills zero fields with defaults.
func New(p Policy) Policy {
	if p.Attempts <= 0 {
		p.Attempts = defaultAttempts
	}
	if p.Base <= 0 {
		p.Base = defaultBase
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaultMaxBackoff
	}
	if p.Multiplier <= 1 {
		p.Multiplier = defaultMultiplier
	}
	if p.Retryable == nil {
		p.Retryable = faults.Retryable
	}
	return p
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. The terminal error wraps ErrExhausted and the last failure.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p = New(p)
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	backoff := p.Base
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w: %w", err, lastErr)
			}
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !p.Retryable(err) {
			return err
		}
		lastErr = err
		if attempt == p.Attempts {
			break
		}
		if err := sleep(ctx, backoff); err != nil {
			return fmt.Errorf("%w: %w", err, lastErr)
		}
		backoff = time.Duration(math.Min(float64(p.MaxBackoff), float64(backoff)*p.Multiplier))
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.Attempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
