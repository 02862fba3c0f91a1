// Package clock abstracts timers so timer-driven sequences can be cancelled
// through a context and exercised in tests without real waiting.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock schedules one-shot timers.
type Clock interface {
	Now() time.Time
	// NewTimer returns a channel that fires once after d and a stop func
	// that releases the timer.
	NewTimer(d time.Duration) (<-chan time.Time, func() bool)
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) NewTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// Sleep waits for d on c. It returns ctx.Err() if the context ends first, and
// re-checks the context after the timer fires so a cancellation racing the
// timer always wins.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	ch, stop := c.NewTimer(d)
	defer stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
	}
	return ctx.Err()
}

// Fake fires every timer immediately and records the requested durations.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	waits  []time.Duration
	OnWait func(d time.Duration)
}

// NewFake returns a Fake clock starting at now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) NewTimer(d time.Duration) (<-chan time.Time, func() bool) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.waits = append(f.waits, d)
	now := f.now
	hook := f.OnWait
	f.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	ch := make(chan time.Time, 1)
	ch <- now
	return ch, func() bool { return false }
}

// Waits returns every duration requested so far.
func (f *Fake) Waits() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.waits))
	copy(out, f.waits)
	return out
}
