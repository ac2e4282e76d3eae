package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRealArmAtFiresAfterTarget(t *testing.T) {
	r := NewReal()
	var fired atomic.Bool
	done := make(chan struct{})
	target := r.Now().Add(20 * time.Millisecond)
	r.ArmAt(target, func() {
		fired.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	if !fired.Load() {
		t.Fatal("callback did not run")
	}
}

func TestRealArmAtStopPreventsFire(t *testing.T) {
	r := NewReal()
	fired := make(chan struct{}, 1)
	timer := r.ArmAt(r.Now().Add(30*time.Millisecond), func() {
		fired <- struct{}{}
	})
	timer.Stop()

	select {
	case <-fired:
		t.Fatal("callback fired after Stop")
	case <-time.After(80 * time.Millisecond):
	}
}
