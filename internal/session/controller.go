// Package session implements the timed assessment session engine: the state
// machine that runs a bounded-duration attempt from creation to its single
// terminal transition.
//
// Lifecycle: CREATED → AWAITING_INTEGRITY → ACTIVE ⇄ COMPROMISED →
// {SUBMITTED | EXPIRED}. Every mutation is an atomic compare-and-swap against
// the session store, so the engine behaves correctly whether one controller
// instance runs or many (a browser tab reload racing a server-side sweep).
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devarena/devarena-backend/internal/clock"
	"github.com/devarena/devarena-backend/internal/model"
)

// casAttempts bounds the retry loop on version conflicts. Conflicts resolve
// in one re-read in practice; the bound only guards against a livelocked
// store implementation.
const casAttempts = 5

// Controller owns session lifecycle transitions and arbitrates between
// manual submit, timer expiry and integrity compromise.
type Controller struct {
	store   Store
	answers AnswerStore
	scores  ScoreQueue
	clock   clock.Clock
	log     zerolog.Logger
}

// NewController creates a session controller.
func NewController(store Store, answers AnswerStore, scores ScoreQueue, clk clock.Clock, log zerolog.Logger) *Controller {
	return &Controller{
		store:   store,
		answers: answers,
		scores:  scores,
		clock:   clk,
		log:     log.With().Str("component", "session_controller").Logger(),
	}
}

// CreateSession starts a new attempt in the CREATED state. The question order
// and duration are fixed here and never change afterwards. StartedAt and
// DeadlineAt remain unset until integrity is first confirmed.
func (c *Controller) CreateSession(ctx context.Context, assessmentID uuid.UUID, participantID int, questionOrder []uuid.UUID, duration time.Duration) (*model.Session, error) {
	if len(questionOrder) == 0 {
		return nil, fmt.Errorf("%w: question order is empty", ErrInvalidState)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: non-positive duration", ErrInvalidState)
	}

	now := c.clock.Now()
	s := &model.Session{
		ID:            uuid.New(),
		AssessmentID:  assessmentID,
		ParticipantID: participantID,
		QuestionOrder: append([]uuid.UUID(nil), questionOrder...),
		Status:        model.SessionStatusCreated,
		Duration:      duration,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := c.store.Create(ctx, s); err != nil {
		return nil, err
	}

	c.log.Info().
		Str("session_id", s.ID.String()).
		Str("assessment_id", assessmentID.String()).
		Int("participant_id", participantID).
		Dur("duration", duration).
		Msg("Session created")

	return s, nil
}

// RequireIntegrity moves CREATED → AWAITING_INTEGRITY. Calling it once the
// session is already past that point is a no-op; terminal sessions reject it.
func (c *Controller) RequireIntegrity(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return c.mutate(ctx, id, func(s *model.Session) (bool, error) {
		if s.Status.Terminal() {
			return false, ErrInvalidState
		}
		if s.Status != model.SessionStatusCreated {
			return false, nil // already past this state
		}
		s.Status = model.SessionStatusAwaitingIntegrity
		return true, nil
	})
}

// ConfirmIntegrity moves AWAITING_INTEGRITY → ACTIVE. StartedAt and
// DeadlineAt are set on the first confirmation only; a duplicate confirm
// (double click, tab reload) is a no-op and never moves the deadline.
func (c *Controller) ConfirmIntegrity(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return c.mutate(ctx, id, func(s *model.Session) (bool, error) {
		switch s.Status {
		case model.SessionStatusAwaitingIntegrity:
			now := c.clock.Now()
			start := now
			deadline := now.Add(s.Duration)
			s.Status = model.SessionStatusActive
			s.StartedAt = &start
			s.DeadlineAt = &deadline
			return true, nil
		case model.SessionStatusActive, model.SessionStatusCompromised:
			return false, nil // already confirmed once
		default:
			return false, ErrInvalidState
		}
	})
}

// NavigateTo sets the current question pointer. Pure pointer change: answers
// are untouched. Valid only while the session is ACTIVE and the index is in
// range.
func (c *Controller) NavigateTo(ctx context.Context, id uuid.UUID, index int) (*model.Session, error) {
	return c.mutate(ctx, id, func(s *model.Session) (bool, error) {
		if s.Status != model.SessionStatusActive {
			return false, ErrInvalidState
		}
		if index < 0 || index >= len(s.QuestionOrder) {
			return false, fmt.Errorf("%w: question index %d out of range", ErrInvalidState, index)
		}
		if s.CurrentQuestionIndex == index {
			return false, nil
		}
		s.CurrentQuestionIndex = index
		return true, nil
	})
}

// SaveAnswer writes a draft to the answer store. Side effect only: session
// status is read to gate the write but never changed. A write racing the
// terminal transition may still land; scoring only reads what is durably
// stored at the time it executes.
func (c *Controller) SaveAnswer(ctx context.Context, id, questionID uuid.UUID, language, code string) error {
	s, err := c.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if s.Status != model.SessionStatusActive {
		return fmt.Errorf("%w: session is %s", ErrInvalidState, s.Status)
	}
	if !containsID(s.QuestionOrder, questionID) {
		return fmt.Errorf("%w: question %s is not part of this session", ErrNotFound, questionID)
	}
	return c.answers.Put(ctx, id, questionID, language, code)
}

// ReportIntegrityLost moves ACTIVE → COMPROMISED and arms the grace deadline.
// Repeated loss reports while already compromised keep the earliest deadline:
// flapping never extends the grace window.
func (c *Controller) ReportIntegrityLost(ctx context.Context, id uuid.UUID, graceWindow time.Duration) (*model.Session, error) {
	return c.mutate(ctx, id, func(s *model.Session) (bool, error) {
		if s.Status.Terminal() {
			return false, ErrInvalidState
		}
		if s.Status != model.SessionStatusActive {
			return false, nil
		}
		deadline := c.clock.Now().Add(graceWindow)
		s.Status = model.SessionStatusCompromised
		s.IntegrityGraceDeadline = &deadline
		return true, nil
	})
}

// ReportIntegrityRestored moves COMPROMISED → ACTIVE if the grace deadline
// has not passed, clearing it. Outside the window, or in any other state,
// it is a no-op: a grace timer that already fired cannot be un-fired.
func (c *Controller) ReportIntegrityRestored(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return c.mutate(ctx, id, func(s *model.Session) (bool, error) {
		if s.Status != model.SessionStatusCompromised {
			return false, nil
		}
		if s.IntegrityGraceDeadline == nil || !c.clock.Now().Before(*s.IntegrityGraceDeadline) {
			return false, nil // grace already expired; forced submission wins
		}
		s.Status = model.SessionStatusActive
		s.IntegrityGraceDeadline = nil
		return true, nil
	})
}

// Submit performs the terminal transition for the given trigger. It is the
// single entry point for manual submission, timeout and integrity expiry, so
// exactly-once semantics are structural:
//
// The terminal status plus a freshly generated submission token are written
// with a compare-and-swap. Losing the race is not an error — the loser
// re-reads and returns the winner's record. Only the winner enqueues the
// scoring job.
func (c *Controller) Submit(ctx context.Context, id uuid.UUID, trigger model.SubmitTrigger) (*model.Session, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		s, err := c.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if s.Status.Terminal() {
			return s, nil // someone else already committed; observe their result
		}
		if s.Status != model.SessionStatusActive && s.Status != model.SessionStatusCompromised {
			return nil, fmt.Errorf("%w: cannot submit from %s", ErrInvalidState, s.Status)
		}

		next := s.Clone()
		now := c.clock.Now()
		token := uuid.New()
		next.Status = trigger.TerminalStatus()
		next.SubmissionToken = &token
		tr := trigger
		next.SubmitTrigger = &tr
		next.FinishedAt = &now
		next.IntegrityGraceDeadline = nil
		next.UpdatedAt = now

		err = c.store.CompareAndSwap(ctx, next)
		if errors.Is(err, ErrVersionConflict) {
			continue // re-read; the other writer may have gone terminal
		}
		if err != nil {
			return nil, err
		}

		c.log.Info().
			Str("session_id", id.String()).
			Str("trigger", string(trigger)).
			Str("status", string(next.Status)).
			Str("submission_token", token.String()).
			Msg("Session reached terminal state")

		// Scoring is scheduled exactly once, by the CAS winner. A failed
		// enqueue is not fatal: the reconciliation sweep retries any
		// terminal session with a null result.
		if err := c.scores.Enqueue(ctx, id); err != nil {
			c.log.Error().Err(err).Str("session_id", id.String()).Msg("Score enqueue failed, reconciliation will retry")
		}
		return next, nil
	}
	return nil, fmt.Errorf("submit session %s: %w", id, ErrVersionConflict)
}

// Tick evaluates the wall-clock deadlines and forces the corresponding
// terminal transition when one has passed. Safe to call redundantly and
// concurrently: once the session is terminal it is a no-op.
func (c *Controller) Tick(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	s, err := c.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status.Terminal() {
		return s, nil
	}

	now := c.clock.Now()

	// DeadlineAt is the sole authority for expiry and outranks the grace
	// deadline when both have passed.
	if s.DeadlineAt != nil && !now.Before(*s.DeadlineAt) {
		return c.Submit(ctx, id, model.TriggerTimeout)
	}
	if s.Status == model.SessionStatusCompromised &&
		s.IntegrityGraceDeadline != nil && !now.Before(*s.IntegrityGraceDeadline) {
		return c.Submit(ctx, id, model.TriggerIntegrityExpired)
	}
	return s, nil
}

// AttachResult writes the score breakdown onto a terminal session. A result
// that is already present wins: scoring runs at-least-once, so a duplicate
// job must not overwrite the first outcome. Attaching to a non-terminal
// session is ErrInvalidState.
func (c *Controller) AttachResult(ctx context.Context, id uuid.UUID, result *model.ScoreResult) (*model.Session, error) {
	return c.mutate(ctx, id, func(s *model.Session) (bool, error) {
		if !s.Status.Terminal() {
			return false, fmt.Errorf("attach result to %s session: %w", s.Status, ErrInvalidState)
		}
		if s.Result != nil {
			return false, nil
		}
		s.Result = result.Clone()
		return true, nil
	})
}

// Load returns a fresh copy of the session.
func (c *Controller) Load(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return c.store.Load(ctx, id)
}

// FindByPair returns the newest session for an (assessment, participant)
// pair.
func (c *Controller) FindByPair(ctx context.Context, assessmentID uuid.UUID, participantID int) (*model.Session, error) {
	return c.store.FindByPair(ctx, assessmentID, participantID)
}

// mutate runs a load → apply → CAS loop. apply mutates the clone in place and
// reports whether a write is needed; returning an error aborts the loop.
func (c *Controller) mutate(ctx context.Context, id uuid.UUID, apply func(*model.Session) (bool, error)) (*model.Session, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		s, err := c.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}

		next := s.Clone()
		changed, err := apply(next)
		if err != nil {
			return nil, err
		}
		if !changed {
			return s, nil
		}

		next.UpdatedAt = c.clock.Now()
		err = c.store.CompareAndSwap(ctx, next)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return next, nil
	}
	return nil, fmt.Errorf("mutate session %s: %w", id, ErrVersionConflict)
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
