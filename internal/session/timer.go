package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/devarena/devarena-backend/internal/clock"
	"github.com/devarena/devarena-backend/internal/model"
)

// DefaultTickInterval is the poll interval for countdown watchers.
const DefaultTickInterval = time.Second

// Timer derives remaining time from a session's absolute deadline. It holds
// no countdown state of its own: every observation recomputes
// deadlineAt − now(), so reloads and reconnects reconstruct identical
// remaining time without drift.
type Timer struct {
	clock    clock.Clock
	interval time.Duration
}

// NewTimer creates a countdown timer polling at the given interval.
// A non-positive interval falls back to DefaultTickInterval.
func NewTimer(clk clock.Clock, interval time.Duration) *Timer {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Timer{clock: clk, interval: interval}
}

// Interval returns the configured poll interval. Watchers and the stream
// tick pusher share it.
func (t *Timer) Interval() time.Duration {
	return t.interval
}

// Remaining returns the time left until the session's deadline, floored at
// zero. A session whose deadline is not yet set (integrity never confirmed)
// has its full duration remaining.
func (t *Timer) Remaining(s *model.Session) time.Duration {
	if s.DeadlineAt == nil {
		return s.Duration
	}
	remaining := s.DeadlineAt.Sub(t.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Watch drives the controller's Tick for one session until it reaches a
// terminal state or ctx is cancelled. The first tick fires immediately, so a
// watcher started after the deadline has already passed forces the expiry
// transition at once rather than one interval later.
func (t *Timer) Watch(ctx context.Context, id uuid.UUID, ctrl *Controller) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		s, err := ctrl.Tick(ctx, id)
		if err == nil && s.Status.Terminal() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
