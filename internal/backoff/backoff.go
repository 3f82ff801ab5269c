// Package backoff drives a fallible action through a bounded, capped exponential retry loop.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Driver defaults.
const (
	DefaultMaxRetries  = 5
	DefaultBase        = 100 * time.Millisecond
	DefaultCap         = 30 * time.Second
	DefaultMaxExponent = 10
)

var (
	// ErrExit is returned when the action reports a permanent failure.
	ErrExit = errors.New("backoff: exit requested")
	// ErrMaxRetries is returned when the action keeps asking for retries past the budget.
	ErrMaxRetries = errors.New("backoff: max retries exceeded")
)

type outcomeKind int

const (
	kindRetry outcomeKind = iota
	kindExit
	kindReturn
)

// Outcome is what an action reports back to the driver after each attempt.
type Outcome[T any] struct {
	kind  outcomeKind
	value T
	cause error
}

// Retry asks the driver to wait and call the action again. cause is optional and only logged.
func Retry[T any](cause error) Outcome[T] {
	return Outcome[T]{kind: kindRetry, cause: cause}
}

// Exit stops the loop immediately with ErrExit, wrapping cause when given.
func Exit[T any](cause error) Outcome[T] {
	return Outcome[T]{kind: kindExit, cause: cause}
}

// Return stops the loop successfully with value.
func Return[T any](value T) Outcome[T] {
	return Outcome[T]{kind: kindReturn, value: value}
}

// String names the outcome kind: "retry", "exit" or "return".
func (o Outcome[T]) String() string {
	switch o.kind {
	case kindExit:
		return "exit"
	case kindReturn:
		return "return"
	default:
		return "retry"
	}
}

// Cause returns the error attached to a Retry or Exit outcome.
func (o Outcome[T]) Cause() error {
	return o.cause
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// RetryHook observes every scheduled retry.
type RetryHook func(attempt int, delay time.Duration, cause error)

// Driver holds the retry budget and delay curve.
type Driver struct {
	MaxRetries  int
	Base        time.Duration
	Cap         time.Duration
	MaxExponent int

	sleep   Sleeper
	onRetry RetryHook
}

// Option customises a Driver.
type Option func(*Driver)

// WithSleeper replaces the context-aware timer sleep.
func WithSleeper(s Sleeper) Option {
	return func(d *Driver) {
		d.sleep = s
	}
}

// WithRetryHook registers a callback invoked before each backoff sleep.
func WithRetryHook(h RetryHook) Option {
	return func(d *Driver) {
		d.onRetry = h
	}
}

// Default returns a driver with 5 retries, 100ms base and a 30s cap.
func Default(opts ...Option) *Driver {
	return New(DefaultMaxRetries, DefaultBase, DefaultCap, DefaultMaxExponent, opts...)
}

// New builds a driver. Non-positive values fall back to the defaults.
func New(maxRetries int, base, maxDelay time.Duration, maxExponent int, opts ...Option) *Driver {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if base <= 0 {
		base = DefaultBase
	}
	if maxDelay <= 0 {
		maxDelay = DefaultCap
	}
	if maxExponent <= 0 {
		maxExponent = DefaultMaxExponent
	}
	d := &Driver{
		MaxRetries:  maxRetries,
		Base:        base,
		Cap:         maxDelay,
		MaxExponent: maxExponent,
		sleep:       timerSleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Delay returns min(2^min(attempt, MaxExponent) * Base, Cap).
func (d *Driver) Delay(attempt int) time.Duration {
	exp := attempt
	if exp > d.MaxExponent {
		exp = d.MaxExponent
	}
	if exp < 0 {
		exp = 0
	}
	delay := d.Base * time.Duration(uint64(1)<<uint(exp))
	if delay > d.Cap || delay <= 0 {
		return d.Cap
	}
	return delay
}

// Run invokes action until it returns a value, asks to exit, or exhausts the retry budget.
func Run[T any](ctx context.Context, d *Driver, action func(context.Context) Outcome[T]) (T, error) {
	var zero T
	if d == nil {
		d = Default()
	}
	attempt := 0
	for {
		out := action(ctx)
		switch out.kind {
		case kindReturn:
			return out.value, nil
		case kindExit:
			if out.cause != nil {
				return zero, fmt.Errorf("%w: %w", ErrExit, out.cause)
			}
			return zero, ErrExit
		}

		attempt++
		if attempt > d.MaxRetries {
			return zero, ErrMaxRetries
		}
		delay := d.Delay(attempt)
		if d.onRetry != nil {
			d.onRetry(attempt, delay, out.cause)
		}
		if err := d.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("backoff sleep: %w", err)
		}
	}
}

func timerSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
