package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devarena/devarena-backend/internal/model"
)

// DefaultDebounce absorbs a single lost→held flicker within roughly one
// animation frame so that a full-screen re-layout does not trigger a false
// compromise.
const DefaultDebounce = 50 * time.Millisecond

// GraceResolver returns the grace window configured on a session's
// assessment. A nil resolver, an error, or a non-positive duration fall
// back to the monitor's default.
type GraceResolver func(ctx context.Context, sessionID uuid.UUID) (time.Duration, error)

// Monitor receives the boolean full-screen signal from the presentation
// boundary and translates it into integrity transitions on the controller.
// It owns no durable state: only the per-session debounce timer.
type Monitor struct {
	ctrl     *Controller
	debounce time.Duration
	grace    time.Duration
	resolve  GraceResolver
	log      zerolog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]*time.Timer
}

// NewMonitor creates an integrity monitor. graceWindow is the default time
// a participant has to restore full-screen before forced submission;
// resolve overrides it per assessment when non-nil.
func NewMonitor(ctrl *Controller, debounce, graceWindow time.Duration, resolve GraceResolver, log zerolog.Logger) *Monitor {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Monitor{
		ctrl:     ctrl,
		debounce: debounce,
		grace:    graceWindow,
		resolve:  resolve,
		log:      log.With().Str("component", "integrity_monitor").Logger(),
		pending:  make(map[uuid.UUID]*time.Timer),
	}
}

// Signal processes one held/lost observation for a session.
//
// A lost signal arms a debounce timer; if held arrives before it fires the
// flicker is ignored entirely. Once the timer fires the loss is reported to
// the controller, which starts the grace window. A held signal after that
// point reports restoration — a no-op if the grace window already expired.
func (m *Monitor) Signal(sessionID uuid.UUID, held bool) {
	m.mu.Lock()
	timer, armed := m.pending[sessionID]

	if held {
		if armed {
			// Flicker absorbed: loss never reported.
			timer.Stop()
			delete(m.pending, sessionID)
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		m.reportRestored(sessionID)
		return
	}

	if armed {
		m.mu.Unlock()
		return // loss already pending
	}
	m.pending[sessionID] = time.AfterFunc(m.debounce, func() {
		m.mu.Lock()
		delete(m.pending, sessionID)
		m.mu.Unlock()
		m.reportLost(sessionID)
	})
	m.mu.Unlock()
}

// Forget drops any pending debounce for a session. Called when its stream
// disconnects; the already-armed grace window, if any, keeps running.
func (m *Monitor) Forget(sessionID uuid.UUID) {
	m.mu.Lock()
	if timer, ok := m.pending[sessionID]; ok {
		timer.Stop()
		delete(m.pending, sessionID)
	}
	m.mu.Unlock()
}

func (m *Monitor) reportLost(sessionID uuid.UUID) {
	ctx := context.Background()

	grace := m.grace
	if m.resolve != nil {
		switch d, err := m.resolve(ctx, sessionID); {
		case err != nil:
			m.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Grace resolution failed, using default")
		case d > 0:
			grace = d
		}
	}

	s, err := m.ctrl.ReportIntegrityLost(ctx, sessionID, grace)
	if err != nil {
		m.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Integrity loss rejected")
		return
	}
	if s.Status == model.SessionStatusCompromised {
		m.log.Info().
			Str("session_id", sessionID.String()).
			Time("grace_deadline", *s.IntegrityGraceDeadline).
			Msg("Integrity lost, grace window armed")
	}
}

func (m *Monitor) reportRestored(sessionID uuid.UUID) {
	s, err := m.ctrl.ReportIntegrityRestored(context.Background(), sessionID)
	if err != nil {
		m.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Integrity restore rejected")
		return
	}
	if s.Status == model.SessionStatusActive && s.IntegrityGraceDeadline == nil {
		m.log.Info().Str("session_id", sessionID.String()).Msg("Integrity restored")
	}
}
