package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/devarena/devarena-backend/internal/model"
)

// Store is the durable session record store. The record is the single shared
// mutable resource of the engine: every mutation goes through CompareAndSwap
// and no in-memory lock spans multiple store round-trips.
type Store interface {
	// Create inserts a new session. Returns ErrAlreadyExists if a
	// non-terminal session exists for the same (assessment, participant).
	Create(ctx context.Context, s *model.Session) error

	// Load returns a fresh copy of the session or ErrNotFound.
	Load(ctx context.Context, id uuid.UUID) (*model.Session, error)

	// FindByPair returns the newest session for an (assessment,
	// participant) pair, or ErrNotFound. Backs the idempotent join flow.
	FindByPair(ctx context.Context, assessmentID uuid.UUID, participantID int) (*model.Session, error)

	// CompareAndSwap writes s only if the stored version still equals
	// s.Version, then increments the version. Returns ErrVersionConflict
	// if another writer got there first, ErrNotFound if the record is gone.
	CompareAndSwap(ctx context.Context, s *model.Session) error

	// FindDue returns ids of non-terminal sessions whose deadline or
	// integrity grace deadline has passed at the given instant. Used by the
	// server-side sweep; redundant results are harmless because tick is
	// idempotent.
	FindDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	// FindUnscored returns ids of terminal sessions with a null result,
	// the reconciliation trigger contract for retrying failed scoring.
	FindUnscored(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// AnswerStore is the durable per-(session, question, language) draft store.
// Entries are independently mutable per key and never deleted while the
// session exists; they are retained after submission for audit.
type AnswerStore interface {
	// Put creates or overwrites a draft.
	Put(ctx context.Context, sessionID, questionID uuid.UUID, language, code string) error

	// Get returns the draft for an exact key, or ErrNotFound.
	Get(ctx context.Context, sessionID, questionID uuid.UUID, language string) (*model.AnswerDraft, error)

	// Latest returns the most recently modified draft for the question
	// across all languages, or ErrNotFound when nothing was ever saved.
	// Scoring uses this as the participant's selected language.
	Latest(ctx context.Context, sessionID, questionID uuid.UUID) (*model.AnswerDraft, error)
}

// ScoreQueue schedules scoring for a session that just reached a terminal
// state. Only the CAS winner enqueues, so no duplicate scoring job is
// scheduled for a single terminal transition.
type ScoreQueue interface {
	Enqueue(ctx context.Context, sessionID uuid.UUID) error
}
