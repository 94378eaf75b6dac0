package session

import (
	"context"
	"testing"
	"time"

	"github.com/devarena/devarena-backend/internal/clock"
	"github.com/devarena/devarena-backend/internal/model"
)

func TestRemainingIsDerivedNotCounted(t *testing.T) {
	e := newTestEngine(t)
	timer := NewTimer(e.clk, DefaultTickInterval)

	s := e.createSession(t, 1, time.Hour)

	// Before integrity confirmation the full duration remains, no matter
	// how much wall time passes.
	e.clk.Advance(24 * time.Hour)
	if got := timer.Remaining(s); got != time.Hour {
		t.Fatalf("remaining before start = %v, want 1h", got)
	}

	s = e.activateSession(t, 1, time.Hour)
	e.clk.Advance(20 * time.Minute)
	if got := timer.Remaining(s); got != 40*time.Minute {
		t.Fatalf("remaining = %v, want 40m", got)
	}

	// A reload reconstructs the identical value from the stored deadline.
	reloaded, err := e.ctrl.Load(context.Background(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := timer.Remaining(reloaded); got != 40*time.Minute {
		t.Fatalf("remaining after reload = %v, want 40m", got)
	}

	e.clk.Advance(2 * time.Hour)
	if got := timer.Remaining(reloaded); got != 0 {
		t.Fatalf("remaining past deadline = %v, want 0", got)
	}
}

func TestTimerInterval(t *testing.T) {
	clk := clock.NewManual(testStart)
	if got := NewTimer(clk, 0).Interval(); got != DefaultTickInterval {
		t.Fatalf("zero interval = %v, want default", got)
	}
	if got := NewTimer(clk, 250*time.Millisecond).Interval(); got != 250*time.Millisecond {
		t.Fatalf("interval = %v", got)
	}
}

func TestWatchStopsOnTerminal(t *testing.T) {
	e := newTestEngine(t)
	timer := NewTimer(e.clk, time.Millisecond)

	s := e.activateSession(t, 1, time.Minute)
	e.clk.Advance(2 * time.Minute)

	// The first tick fires immediately and finds the deadline passed, so
	// Watch returns without waiting for the ticker.
	done := make(chan struct{})
	go func() {
		timer.Watch(context.Background(), s.ID, e.ctrl)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop after terminal transition")
	}

	got, err := e.ctrl.Load(context.Background(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.SessionStatusExpired {
		t.Fatalf("status = %s, want EXPIRED", got.Status)
	}
}

func TestWatchStopsOnContextCancel(t *testing.T) {
	e := newTestEngine(t)
	timer := NewTimer(e.clk, time.Millisecond)

	s := e.activateSession(t, 1, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		timer.Watch(ctx, s.ID, e.ctrl)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop on context cancel")
	}
}
