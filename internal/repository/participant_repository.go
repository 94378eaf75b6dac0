package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devarena/devarena-backend/internal/model"
	"github.com/devarena/devarena-backend/internal/session"
)

// ParticipantRepository handles participant and instructor account access.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// GetParticipantByUsername retrieves a participant for login.
func (r *ParticipantRepository) GetParticipantByUsername(ctx context.Context, username string) (*model.Participant, error) {
	var p model.Participant
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, username, password_hash, created_at
		 FROM participants WHERE username = $1`, username,
	).Scan(&p.ID, &p.Name, &p.Username, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("scan participant: %w", err)
	}
	return &p, nil
}

// GetInstructorByEmail retrieves an instructor for login.
func (r *ParticipantRepository) GetInstructorByEmail(ctx context.Context, email string) (*model.Instructor, error) {
	var i model.Instructor
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM instructors WHERE email = $1`, email,
	).Scan(&i.ID, &i.Name, &i.Email, &i.PasswordHash, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("scan instructor: %w", err)
	}
	return &i, nil
}

// CreateInstructor inserts a new instructor account.
func (r *ParticipantRepository) CreateInstructor(ctx context.Context, i *model.Instructor) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO instructors (name, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		i.Name, i.Email, i.PasswordHash,
	).Scan(&i.ID, &i.CreatedAt)
}
