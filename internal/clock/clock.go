// Package clock is the time source the scheduler runs on.
//
// Real reads the wall clock and sleeps on timers. Fake lets tests drive time:
// a sleep jumps the fake clock straight to its deadline.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock reads the current time and blocks until a wall-clock instant.
type Clock interface {
	Now() time.Time
	// SleepUntil returns when t is reached or ctx is done, whichever is first.
	SleepUntil(ctx context.Context, t time.Time) error
}

// maxSleepChunk bounds a single timer wait. Go timers follow the monotonic
// clock, which stops while the host is suspended, so long waits are split and
// the wall clock re-read after each chunk.
const maxSleepChunk = 60 * time.Second

// Real is the production clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) SleepUntil(ctx context.Context, t time.Time) error {
	for {
		// Round(0) strips the monotonic reading so the wait is measured on the wall clock.
		d := t.Sub(time.Now().Round(0))
		if d <= 0 {
			return nil
		}
		if d > maxSleepChunk {
			d = maxSleepChunk
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Fake is a manually driven clock. SleepUntil advances it to the deadline
// (plus Lag) without blocking.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	lag    time.Duration
	sleeps []time.Time
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t, backwards included.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// SetLag makes every future wake-up land d after its deadline.
func (f *Fake) SetLag(d time.Duration) {
	f.mu.Lock()
	f.lag = d
	f.mu.Unlock()
}

// Sleeps returns the deadlines passed to SleepUntil, in call order.
func (f *Fake) Sleeps() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.sleeps...)
}

func (f *Fake) SleepUntil(ctx context.Context, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, t)
	if t.After(f.now) {
		f.now = t.Add(f.lag)
	}
	return nil
}
