package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devarena/devarena-backend/internal/model"
)

const testDebounce = 20 * time.Millisecond

func TestMonitorDebouncesFlicker(t *testing.T) {
	e := newTestEngine(t)
	monitor := NewMonitor(e.ctrl, testDebounce, 15*time.Second, nil, zerolog.Nop())

	s := e.activateSession(t, 1, time.Hour)

	// A lost signal followed quickly by held never reaches the controller.
	monitor.Signal(s.ID, false)
	monitor.Signal(s.ID, true)

	time.Sleep(4 * testDebounce)
	got, err := e.ctrl.Load(context.Background(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.SessionStatusActive {
		t.Fatalf("status = %s after flicker, want ACTIVE", got.Status)
	}
}

func TestMonitorReportsSustainedLoss(t *testing.T) {
	e := newTestEngine(t)
	monitor := NewMonitor(e.ctrl, testDebounce, 15*time.Second, nil, zerolog.Nop())

	s := e.activateSession(t, 1, time.Hour)

	monitor.Signal(s.ID, false)
	time.Sleep(4 * testDebounce)

	got, err := e.ctrl.Load(context.Background(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.SessionStatusCompromised {
		t.Fatalf("status = %s after sustained loss, want COMPROMISED", got.Status)
	}
	if got.IntegrityGraceDeadline == nil {
		t.Fatal("grace deadline not armed")
	}

	// Held after the loss was reported restores the session.
	monitor.Signal(s.ID, true)
	got, err = e.ctrl.Load(context.Background(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.SessionStatusActive {
		t.Fatalf("status = %s after restore, want ACTIVE", got.Status)
	}
	if got.IntegrityGraceDeadline != nil {
		t.Fatal("grace deadline not cleared")
	}
}

func TestMonitorRepeatedLossSignalsArmOnce(t *testing.T) {
	e := newTestEngine(t)
	monitor := NewMonitor(e.ctrl, testDebounce, 15*time.Second, nil, zerolog.Nop())

	s := e.activateSession(t, 1, time.Hour)

	monitor.Signal(s.ID, false)
	monitor.Signal(s.ID, false)
	monitor.Signal(s.ID, false)
	time.Sleep(4 * testDebounce)

	got, err := e.ctrl.Load(context.Background(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.SessionStatusCompromised {
		t.Fatalf("status = %s, want COMPROMISED", got.Status)
	}
	want := testStart.Add(15 * time.Second)
	if !got.IntegrityGraceDeadline.Equal(want) {
		t.Fatalf("grace deadline = %v, want %v", got.IntegrityGraceDeadline, want)
	}
}

func TestMonitorForgetCancelsPendingLoss(t *testing.T) {
	e := newTestEngine(t)
	monitor := NewMonitor(e.ctrl, testDebounce, 15*time.Second, nil, zerolog.Nop())

	s := e.activateSession(t, 1, time.Hour)

	monitor.Signal(s.ID, false)
	monitor.Forget(s.ID)
	time.Sleep(4 * testDebounce)

	got, err := e.ctrl.Load(context.Background(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.SessionStatusActive {
		t.Fatalf("status = %s after forget, want ACTIVE", got.Status)
	}
}

func TestMonitorIgnoresLossOnTerminalSession(t *testing.T) {
	e := newTestEngine(t)
	monitor := NewMonitor(e.ctrl, testDebounce, 15*time.Second, nil, zerolog.Nop())

	s := e.activateSession(t, 1, time.Hour)
	if _, err := e.ctrl.Submit(context.Background(), s.ID, model.TriggerManual); err != nil {
		t.Fatal(err)
	}

	monitor.Signal(s.ID, false)
	time.Sleep(4 * testDebounce)

	got, err := e.ctrl.Load(context.Background(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.SessionStatusSubmitted {
		t.Fatalf("status = %s, want SUBMITTED untouched", got.Status)
	}
}

func TestMonitorResolvesGracePerAssessment(t *testing.T) {
	e := newTestEngine(t)
	resolve := func(ctx context.Context, id uuid.UUID) (time.Duration, error) {
		return 42 * time.Second, nil
	}
	monitor := NewMonitor(e.ctrl, testDebounce, 15*time.Second, resolve, zerolog.Nop())

	s := e.activateSession(t, 1, time.Hour)

	monitor.Signal(s.ID, false)
	time.Sleep(4 * testDebounce)

	got, err := e.ctrl.Load(context.Background(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := testStart.Add(42 * time.Second)
	if got.IntegrityGraceDeadline == nil || !got.IntegrityGraceDeadline.Equal(want) {
		t.Fatalf("grace deadline = %v, want %v from the assessment", got.IntegrityGraceDeadline, want)
	}
}

func TestMonitorGraceResolverFailureFallsBack(t *testing.T) {
	e := newTestEngine(t)
	resolve := func(ctx context.Context, id uuid.UUID) (time.Duration, error) {
		return 0, errors.New("assessment lookup failed")
	}
	monitor := NewMonitor(e.ctrl, testDebounce, 15*time.Second, resolve, zerolog.Nop())

	s := e.activateSession(t, 1, time.Hour)

	monitor.Signal(s.ID, false)
	time.Sleep(4 * testDebounce)

	got, err := e.ctrl.Load(context.Background(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := testStart.Add(15 * time.Second)
	if got.IntegrityGraceDeadline == nil || !got.IntegrityGraceDeadline.Equal(want) {
		t.Fatalf("grace deadline = %v, want default %v", got.IntegrityGraceDeadline, want)
	}
}
