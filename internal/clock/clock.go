// Package clock provides the monotonic-now source and the re-arming timer
// facility the scheduler arms its triggers against. Isolated behind an
// interface so tests can drive fake time instead of sleeping.
package clock

import (
	"sync"
	"time"
)

// maxSlice bounds a single underlying timer wait. Some platform timer
// implementations drift or saturate over very long delays, and wall-clock
// jumps (DST, NTP corrections) make an instant computed far in advance
// unreliable; re-checking every slice absorbs both.
const maxSlice = 24 * time.Hour

// Clock is the time source the scheduler depends on.
type Clock interface {
	Now() time.Time
	// ArmAt schedules cb to run at or after target, transparently re-arming
	// across the 24h slice boundary. The returned Timer can be stopped.
	ArmAt(target time.Time, cb func()) *Timer
}

// Real is the wall-clock Clock used in production.
type Real struct{}

func NewReal() Real { return Real{} }

func (Real) Now() time.Time { return time.Now() }

func (r Real) ArmAt(target time.Time, cb func()) *Timer {
	t := &Timer{now: r.Now, target: target, cb: cb}
	t.arm()
	return t
}

// Timer is a cancellable handle to a (possibly multi-slice) armed callback.
// Stop never corrupts the timer when it races a fire: a fire() that checks
// the cancelled flag after Stop does nothing, but one that has already
// passed that check still invokes cb.
type Timer struct {
	mu        sync.Mutex
	underlying *time.Timer
	cancelled bool
	target    time.Time
	now       func() time.Time
	cb        func()
}

func (t *Timer) arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	delay := t.target.Sub(t.now())
	if delay < 0 {
		delay = 0
	}
	if delay > maxSlice {
		delay = maxSlice
	}
	t.underlying = time.AfterFunc(delay, t.fire)
}

func (t *Timer) fire() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	if t.now().Before(t.target) {
		t.arm()
		return
	}
	t.cb()
}

// Stop cancels the timer. Safe to call more than once and safe to race
// against a pending fire.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
	if t.underlying != nil {
		t.underlying.Stop()
	}
}
