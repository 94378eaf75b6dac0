package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devarena/devarena-backend/internal/model"
	"github.com/devarena/devarena-backend/internal/session"
)

// QuestionRepository handles question reference data. It implements
// scoring.QuestionSource.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// GetQuestion retrieves one question with its test cases.
func (r *QuestionRepository) GetQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := r.scanQuestion(r.pool.QueryRow(ctx,
		`SELECT id, assessment_id, prompt, constraints, examples, points,
		        allowed_languages, starter_code, order_num
		 FROM questions WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, input, expected_out, hidden
		 FROM test_cases WHERE question_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query test cases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.Input, &tc.ExpectedOut, &tc.Hidden); err != nil {
			return nil, err
		}
		q.TestCases = append(q.TestCases, tc)
	}
	return q, rows.Err()
}

// ListByAssessment retrieves an assessment's questions in order, without
// test cases. Used to fix the question order at session creation and to
// build the participant paper.
func (r *QuestionRepository) ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, assessment_id, prompt, constraints, examples, points,
		        allowed_languages, starter_code, order_num
		 FROM questions WHERE assessment_id = $1 ORDER BY order_num ASC`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := r.scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

func (r *QuestionRepository) scanQuestion(row pgx.Row) (*model.Question, error) {
	var (
		q       model.Question
		langs   []byte
		starter []byte
	)
	err := row.Scan(&q.ID, &q.AssessmentID, &q.Prompt, &q.Constraints, &q.Examples,
		&q.Points, &langs, &starter, &q.OrderNum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("scan question: %w", err)
	}

	if len(langs) > 0 {
		if err := json.Unmarshal(langs, &q.AllowedLanguages); err != nil {
			return nil, fmt.Errorf("unmarshal allowed languages: %w", err)
		}
	}
	if len(starter) > 0 {
		if err := json.Unmarshal(starter, &q.StarterCode); err != nil {
			return nil, fmt.Errorf("unmarshal starter code: %w", err)
		}
	}
	return &q, nil
}
