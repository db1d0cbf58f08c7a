package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Defaults applied by Do before options
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultMultiplier   = 2.0
	DefaultJitter       = 0.1
)

// Unlimited disables the attempt bound; MaxElapsed or the context must stop the loop.
const Unlimited = -1

// ErrDeadlineExceeded is returned (wrapping the last attempt's error) when MaxElapsed runs out
var ErrDeadlineExceeded = errors.New("retry deadline exceeded")

// Backoff describes how often and for how long Do calls its function
type Backoff struct {
	// MaxAttempts counts the first call. Unlimited leaves the bound to MaxElapsed.
	MaxAttempts int

	// MaxElapsed bounds the total time, sleeps included. Zero means no bound.
	MaxElapsed time.Duration

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Jitter spreads each delay by up to this fraction in either direction
	Jitter float64

	// OnRetry runs before each sleep
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultBackoff returns the backoff used when Do gets no options
func DefaultBackoff() *Backoff {
	return &Backoff{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
		Jitter:       DefaultJitter,
	}
}

// Delay returns the un-jittered sleep after the given 1-based attempt
func (b *Backoff) Delay(attempt int) time.Duration {
	d := b.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * b.Multiplier)
		if d >= b.MaxDelay {
			return b.MaxDelay
		}
	}
	return min(d, b.MaxDelay)
}

func (b *Backoff) jittered(d time.Duration) time.Duration {
	if b.Jitter <= 0 {
		return d
	}
	spread := float64(d) * b.Jitter
	return time.Duration(float64(d) + (rand.Float64()*2-1)*spread)
}

// Option adjusts a Backoff
type Option func(*Backoff)

// WithMaxAttempts bounds the number of calls
func WithMaxAttempts(n int) Option {
	return func(b *Backoff) { b.MaxAttempts = n }
}

// WithMaxElapsed bounds the total retry time and lifts the attempt bound
func WithMaxElapsed(d time.Duration) Option {
	return func(b *Backoff) {
		b.MaxElapsed = d
		b.MaxAttempts = Unlimited
	}
}

// WithInitialDelay sets the first sleep
func WithInitialDelay(d time.Duration) Option {
	return func(b *Backoff) { b.InitialDelay = d }
}

// WithMaxDelay caps every sleep
func WithMaxDelay(d time.Duration) Option {
	return func(b *Backoff) { b.MaxDelay = d }
}

// WithMultiplier sets the growth factor between sleeps
func WithMultiplier(m float64) Option {
	return func(b *Backoff) { b.Multiplier = m }
}

// WithJitter sets the jitter fraction; zero makes delays exact
func WithJitter(j float64) Option {
	return func(b *Backoff) { b.Jitter = j }
}

// WithOnRetry registers a callback run before each sleep
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(b *Backoff) { b.OnRetry = fn }
}

// PermanentError stops Do on the first occurrence
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Do calls fn until it returns nil, returns a permanent error, the attempts
// or MaxElapsed run out, or ctx ends.
func Do(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) error {
	b := DefaultBackoff()
	for _, opt := range opts {
		opt(b)
	}

	if b.MaxAttempts == 0 || (b.MaxAttempts < 0 && b.MaxElapsed <= 0) {
		b.MaxAttempts = 1
	}

	var deadline time.Time
	if b.MaxElapsed > 0 {
		deadline = time.Now().Add(b.MaxElapsed)
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var pe *PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}

		if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
			return err
		}

		delay := b.jittered(b.Delay(attempt))
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return fmt.Errorf("%w after %d attempts: %w", ErrDeadlineExceeded, attempt, err)
			}
			// one last attempt lands on the deadline
			delay = min(delay, remaining)
		}

		if b.OnRetry != nil {
			b.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
