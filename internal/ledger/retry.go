package ledger

import (
	"context"
	"math/rand"
	"time"
)

// Backoff is the bounded retry schedule for conflicting targeted mutations.
// Jitter and Sleep are injectable so tests run without waiting.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration

	// Jitter maps the exponential delay d to the delay actually slept.
	Jitter func(d time.Duration) time.Duration
	Sleep  func(ctx context.Context, d time.Duration) error
}

func DefaultBackoff() Backoff {
	return Backoff{
		Attempts: 5,
		Base:     25 * time.Millisecond,
		Max:      400 * time.Millisecond,
		Jitter:   FullJitter,
		Sleep:    SleepContext,
	}
}

// FullJitter picks a uniformly random delay in [0, d].
func FullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Delay is the sleep before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 1; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	if b.Jitter != nil {
		d = b.Jitter(d)
	}
	return d
}

func (b Backoff) wait(ctx context.Context, attempt int) error {
	sleep := b.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	return sleep(ctx, b.Delay(attempt))
}

func (b Backoff) withDefaults() Backoff {
	def := DefaultBackoff()
	if b.Attempts <= 0 {
		b.Attempts = def.Attempts
	}
	if b.Base <= 0 {
		b.Base = def.Base
	}
	if b.Max <= 0 {
		b.Max = def.Max
	}
	if b.Jitter == nil {
		b.Jitter = def.Jitter
	}
	if b.Sleep == nil {
		b.Sleep = def.Sleep
	}
	return b
}
