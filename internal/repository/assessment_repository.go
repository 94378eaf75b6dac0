package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devarena/devarena-backend/internal/model"
	"github.com/devarena/devarena-backend/internal/session"
)

// AssessmentRepository handles assessment definition data access.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

// GetByID retrieves an assessment definition.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	var a model.Assessment
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, author_id, duration_minutes, grace_seconds, status, created_at, updated_at
		 FROM assessments WHERE id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.AuthorID, &a.DurationMinutes, &a.GraceSeconds,
		&a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("scan assessment: %w", err)
	}
	return &a, nil
}

// ListPublished retrieves all assessments open for joining.
func (r *AssessmentRepository) ListPublished(ctx context.Context) ([]model.Assessment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, author_id, duration_minutes, grace_seconds, status, created_at, updated_at
		 FROM assessments WHERE status = $1 ORDER BY created_at DESC`,
		model.AssessmentStatusPublished,
	)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	defer rows.Close()

	var assessments []model.Assessment
	for rows.Next() {
		var a model.Assessment
		if err := rows.Scan(&a.ID, &a.Title, &a.AuthorID, &a.DurationMinutes,
			&a.GraceSeconds, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}
	return assessments, rows.Err()
}

// ListByParticipant retrieves all sessions a participant has, keyed by
// assessment, for the lobby status overlay.
func (r *AssessmentRepository) ListSessionsByParticipant(ctx context.Context, participantID int) (map[uuid.UUID]*model.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM assessment_sessions
		 WHERE participant_id = $1 ORDER BY created_at DESC`, participantID)
	if err != nil {
		return nil, fmt.Errorf("query participant sessions: %w", err)
	}
	defer rows.Close()

	sessions := make(map[uuid.UUID]*model.Session)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		// Newest first; keep only the newest per assessment.
		if _, ok := sessions[s.AssessmentID]; !ok {
			sessions[s.AssessmentID] = s
		}
	}
	return sessions, rows.Err()
}
