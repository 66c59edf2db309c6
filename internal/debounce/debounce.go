// Package debounce coalesces bursts of calls into one delayed call.
//
// Timers come from a Scheduler so that production code runs on the runtime
// timer wheel while tests drive time by hand with Manual.
package debounce

import (
	"sync"
	"time"
)

// Timer is a cancellable pending call.
type Timer interface {
	// Stop cancels the call. It reports false if the call already ran or
	// was already stopped.
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler uses time.AfterFunc.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Debouncer holds at most one pending call. Each Trigger replaces the
// previous pending call and restarts the delay.
type Debouncer struct {
	mu    sync.Mutex
	sched Scheduler
	delay time.Duration
	timer Timer
	fn    func()
	gen   uint64
}

func New(s Scheduler, delay time.Duration) *Debouncer {
	if s == nil {
		s = RealScheduler{}
	}
	return &Debouncer{sched: s, delay: delay}
}

// Trigger (re)arms the timer to run f after the delay.
func (d *Debouncer) Trigger(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.fn = f
	d.timer = d.sched.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.timer == nil {
		// superseded by a later Trigger or cancelled
		d.mu.Unlock()
		return
	}
	f := d.fn
	d.timer, d.fn = nil, nil
	d.mu.Unlock()
	f()
}

// Cancel drops the pending call. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer, d.fn = nil, nil
	d.gen++
	return true
}

// Pending reports whether a call is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Flush runs the pending call now, if any, and reports whether it ran.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.timer == nil {
		d.mu.Unlock()
		return false
	}
	d.timer.Stop()
	f := d.fn
	d.timer, d.fn = nil, nil
	d.gen++
	d.mu.Unlock()
	f()
	return true
}
