// Package debounce delays a call until its input has been quiet for a fixed
// interval. A newer call always supersedes the pending one.
package debounce

import (
	"sync"
	"time"
)

// DefaultDuration is the quiescence interval used when none is given.
const DefaultDuration = 150 * time.Millisecond

// Debouncer runs the most recently triggered function once its duration
// has passed without another trigger.
type Debouncer struct {
	duration time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
}

// NewDebouncer creates a debouncer. Non-positive durations use
// DefaultDuration.
func NewDebouncer(d time.Duration) *Debouncer {
	if d <= 0 {
		d = DefaultDuration
	}
	return &Debouncer{duration: d}
}

// Trigger schedules fn, replacing any pending function.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		current := gen == d.gen
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Cancel drops the pending function, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// Duration returns the quiescence interval.
func (d *Debouncer) Duration() time.Duration {
	return d.duration
}

// Scheduler holds the time of the last call and its pending arguments, and
// invokes fn once per quiet period with the latest arguments. At most one
// invocation of fn runs at a time.
type Scheduler[T any] struct {
	debouncer *Debouncer
	fn        func(T)

	mu       sync.Mutex
	pending  *T
	lastCall time.Time
	running  sync.Mutex
}

// NewScheduler creates a scheduler around fn.
func NewScheduler[T any](d time.Duration, fn func(T)) *Scheduler[T] {
	return &Scheduler[T]{debouncer: NewDebouncer(d), fn: fn}
}

// Schedule records args as the pending call and restarts the quiet period.
func (s *Scheduler[T]) Schedule(args T) {
	s.mu.Lock()
	s.pending = &args
	s.lastCall = time.Now()
	s.mu.Unlock()
	s.debouncer.Trigger(func() { s.fire() })
}

// Flush runs the pending call immediately, if any. It reports whether a
// call ran.
func (s *Scheduler[T]) Flush() bool {
	s.debouncer.Cancel()
	return s.fire()
}

// Cancel drops the pending call.
func (s *Scheduler[T]) Cancel() {
	s.debouncer.Cancel()
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// Pending returns the pending arguments.
func (s *Scheduler[T]) Pending() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		var zero T
		return zero, false
	}
	return *s.pending, true
}

// LastCall returns when Schedule was last called.
func (s *Scheduler[T]) LastCall() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCall
}

func (s *Scheduler[T]) fire() bool {
	s.running.Lock()
	defer s.running.Unlock()

	s.mu.Lock()
	args := s.pending
	s.pending = nil
	s.mu.Unlock()
	if args == nil {
		return false
	}
	s.fn(*args)
	return true
}
