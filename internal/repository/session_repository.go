package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devarena/devarena-backend/internal/model"
	"github.com/devarena/devarena-backend/internal/session"
)

const pgUniqueViolation = "23505"

const sessionColumns = `id, assessment_id, participant_id, question_order, current_question_index,
	status, duration_ns, started_at, deadline_at, integrity_grace_deadline,
	submission_token, submit_trigger, finished_at, result, version, created_at, updated_at`

// SessionRepository is the Postgres-backed session store. It implements
// session.Store: mutation happens only through a versioned compare-and-swap
// UPDATE, which serializes terminal transitions without locks.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create inserts a new session. A partial unique index on
// (assessment_id, participant_id) over non-terminal rows turns a duplicate
// attempt into session.ErrAlreadyExists.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	order, err := json.Marshal(s.QuestionOrder)
	if err != nil {
		return fmt.Errorf("marshal question order: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO assessment_sessions
		   (id, assessment_id, participant_id, question_order, current_question_index,
		    status, duration_ns, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $8)`,
		s.ID, s.AssessmentID, s.ParticipantID, order, s.CurrentQuestionIndex,
		s.Status, s.Duration.Nanoseconds(), s.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return session.ErrAlreadyExists
		}
		return fmt.Errorf("insert session: %w", err)
	}

	s.Version = 1
	return nil
}

// Load implements session.Store.
func (r *SessionRepository) Load(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM assessment_sessions WHERE id = $1`, id)
	return scanSession(row)
}

// CompareAndSwap implements session.Store. The UPDATE carries the caller's
// expected version in its WHERE clause; zero affected rows means either the
// record vanished or another writer won the race.
func (r *SessionRepository) CompareAndSwap(ctx context.Context, s *model.Session) error {
	order, err := json.Marshal(s.QuestionOrder)
	if err != nil {
		return fmt.Errorf("marshal question order: %w", err)
	}

	var result []byte
	if s.Result != nil {
		result, err = json.Marshal(s.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE assessment_sessions
		 SET question_order = $1,
		     current_question_index = $2,
		     status = $3,
		     started_at = $4,
		     deadline_at = $5,
		     integrity_grace_deadline = $6,
		     submission_token = $7,
		     submit_trigger = $8,
		     finished_at = $9,
		     result = $10,
		     version = version + 1,
		     updated_at = $11
		 WHERE id = $12 AND version = $13`,
		order, s.CurrentQuestionIndex, s.Status,
		s.StartedAt, s.DeadlineAt, s.IntegrityGraceDeadline,
		s.SubmissionToken, s.SubmitTrigger, s.FinishedAt, result,
		s.UpdatedAt, s.ID, s.Version,
	)
	if err != nil {
		return fmt.Errorf("cas session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM assessment_sessions WHERE id = $1)`, s.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check session existence: %w", err)
		}
		if !exists {
			return session.ErrNotFound
		}
		return session.ErrVersionConflict
	}

	s.Version++
	return nil
}

// FindDue implements session.Store: non-terminal sessions whose deadline or
// armed grace deadline has passed.
func (r *SessionRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM assessment_sessions
		 WHERE status NOT IN ($1, $2)
		   AND (
		     (deadline_at IS NOT NULL AND deadline_at <= $3)
		     OR (status = $4 AND integrity_grace_deadline IS NOT NULL AND integrity_grace_deadline <= $3)
		   )
		 LIMIT $5`,
		model.SessionStatusSubmitted, model.SessionStatusExpired, now,
		model.SessionStatusCompromised, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query due sessions: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// FindUnscored implements session.Store: terminal sessions with a null
// result, the reconciliation trigger. The settle interval keeps freshly
// submitted sessions out while their first scoring job is still in flight.
func (r *SessionRepository) FindUnscored(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM assessment_sessions
		 WHERE status IN ($1, $2) AND result IS NULL
		   AND finished_at <= NOW() - INTERVAL '30 seconds'
		 LIMIT $3`,
		model.SessionStatusSubmitted, model.SessionStatusExpired, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query unscored sessions: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// FindByPair returns the newest session for the pair, used by the
// idempotent join flow.
func (r *SessionRepository) FindByPair(ctx context.Context, assessmentID uuid.UUID, participantID int) (*model.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM assessment_sessions
		 WHERE assessment_id = $1 AND participant_id = $2
		 ORDER BY created_at DESC
		 LIMIT 1`, assessmentID, participantID)
	return scanSession(row)
}

// SessionResult combines participant data with their session outcome for the
// instructor results view.
type SessionResult struct {
	ParticipantID   int                 `json:"participant_id"`
	ParticipantName string              `json:"participant_name"`
	Status          model.SessionStatus `json:"status"`
	TotalScore      *float64            `json:"total_score"`
	MaxScore        *float64            `json:"max_score"`
	StartedAt       *time.Time          `json:"started_at"`
	FinishedAt      *time.Time          `json:"finished_at"`
}

// ListByAssessment returns paginated session results for an assessment.
func (r *SessionRepository) ListByAssessment(ctx context.Context, assessmentID uuid.UUID, page, perPage int) ([]SessionResult, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM assessment_sessions WHERE assessment_id = $1`, assessmentID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT s.participant_id, p.name, s.status,
		        (s.result->>'total_score')::float8,
		        (s.result->>'max_score')::float8,
		        s.started_at, s.finished_at
		 FROM assessment_sessions s
		 JOIN participants p ON s.participant_id = p.id
		 WHERE s.assessment_id = $1
		 ORDER BY p.name ASC
		 LIMIT $2 OFFSET $3`,
		assessmentID, perPage, (page-1)*perPage,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var results []SessionResult
	for rows.Next() {
		var sr SessionResult
		if err := rows.Scan(
			&sr.ParticipantID, &sr.ParticipantName, &sr.Status,
			&sr.TotalScore, &sr.MaxScore, &sr.StartedAt, &sr.FinishedAt,
		); err != nil {
			return nil, 0, err
		}
		results = append(results, sr)
	}
	return results, total, rows.Err()
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var (
		s         model.Session
		order     []byte
		duration  int64
		result    []byte
	)
	err := row.Scan(
		&s.ID, &s.AssessmentID, &s.ParticipantID, &order, &s.CurrentQuestionIndex,
		&s.Status, &duration, &s.StartedAt, &s.DeadlineAt, &s.IntegrityGraceDeadline,
		&s.SubmissionToken, &s.SubmitTrigger, &s.FinishedAt, &result,
		&s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if err := json.Unmarshal(order, &s.QuestionOrder); err != nil {
		return nil, fmt.Errorf("unmarshal question order: %w", err)
	}
	if len(result) > 0 {
		s.Result = &model.ScoreResult{}
		if err := json.Unmarshal(result, s.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	s.Duration = time.Duration(duration)
	return &s, nil
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
