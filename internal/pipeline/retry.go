package pipeline

import (
	"context"
	"time"
)

// Backoff is an exponential retry policy.
type Backoff struct {
	// MaxAttempts counts every attempt including the first.
	MaxAttempts int
	Initial     time.Duration
	Multiplier  float64
	Max         time.Duration
	// Sleep waits between attempts; it returns early with ctx.Err() when
	// ctx is done. Replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultBackoff is the deposit retry policy: five attempts, 3s initial
// delay doubling up to a minute.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts: 5,
		Initial:     3 * time.Second,
		Multiplier:  2,
		Max:         time.Minute,
		Sleep:       sleep,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := float64(b.Initial)
	for i := 1; i < attempt; i++ {
		d *= b.Multiplier
		if b.Max > 0 && d >= float64(b.Max) {
			return b.Max
		}
	}
	if b.Max > 0 && time.Duration(d) > b.Max {
		return b.Max
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, returns an error retryable rejects, or
// the attempts are used up. It returns the number of attempts made and
// the last error. A done ctx stops further attempts but never interrupts
// a running one.
func (b Backoff) Do(ctx context.Context, retryable func(error) bool, fn func(attempt int) error) (int, error) {
	maxAttempts := b.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	wait := b.Sleep
	if wait == nil {
		wait = sleep
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(attempt)
		if err == nil || !retryable(err) || attempt == maxAttempts {
			return attempt, err
		}
		if werr := wait(ctx, b.Delay(attempt)); werr != nil {
			return attempt, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
