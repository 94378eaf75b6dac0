package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/devarena/devarena-backend/internal/config"
	"github.com/devarena/devarena-backend/internal/model"
	"github.com/devarena/devarena-backend/internal/session"
)

// AnswerRepository implements session.AnswerStore with a Redis hot path and
// a Postgres durable path. Writes land in a per-session Redis hash and are
// queued for the answer worker to upsert into Postgres; reads prefer Redis
// and fall back to Postgres when the hash was evicted.
type AnswerRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool, rdb *redis.Client) *AnswerRepository {
	return &AnswerRepository{pool: pool, rdb: rdb}
}

// cachedDraft is the JSON value stored per hash field.
type cachedDraft struct {
	Code    string    `json:"code"`
	SavedAt time.Time `json:"saved_at"`
}

// AnswerJob is the queue payload consumed by the answer worker.
type AnswerJob struct {
	SessionID  string `json:"session_id"`
	QuestionID string `json:"question_id"`
	Language   string `json:"language"`
	Code       string `json:"code"`
	SavedAt    int64  `json:"saved_at"`
}

func answerField(questionID uuid.UUID, language string) string {
	return questionID.String() + ":" + language
}

// Put implements session.AnswerStore.
func (r *AnswerRepository) Put(ctx context.Context, sessionID, questionID uuid.UUID, language, code string) error {
	now := time.Now()
	key := config.CacheKey.SessionAnswersKey(sessionID.String())

	raw, err := json.Marshal(cachedDraft{Code: code, SavedAt: now})
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := r.rdb.HSet(ctx, key, answerField(questionID, language), raw).Err(); err != nil {
		return fmt.Errorf("cache draft: %w", err)
	}

	job, _ := json.Marshal(AnswerJob{
		SessionID:  sessionID.String(),
		QuestionID: questionID.String(),
		Language:   language,
		Code:       code,
		SavedAt:    now.Unix(),
	})
	if err := r.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, job).Err(); err != nil {
		return fmt.Errorf("queue draft: %w", err)
	}
	return nil
}

// Get implements session.AnswerStore.
func (r *AnswerRepository) Get(ctx context.Context, sessionID, questionID uuid.UUID, language string) (*model.AnswerDraft, error) {
	key := config.CacheKey.SessionAnswersKey(sessionID.String())

	raw, err := r.rdb.HGet(ctx, key, answerField(questionID, language)).Result()
	if err == nil {
		var cached cachedDraft
		if err := json.Unmarshal([]byte(raw), &cached); err != nil {
			return nil, fmt.Errorf("unmarshal cached draft: %w", err)
		}
		return &model.AnswerDraft{
			SessionID:      sessionID,
			QuestionID:     questionID,
			Language:       language,
			Code:           cached.Code,
			LastModifiedAt: cached.SavedAt,
		}, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read cached draft: %w", err)
	}

	// Cache miss — fall back to the durable copy.
	return r.getDurable(ctx, sessionID, questionID, language)
}

// Latest implements session.AnswerStore: the most recently modified draft
// for the question across all languages.
func (r *AnswerRepository) Latest(ctx context.Context, sessionID, questionID uuid.UUID) (*model.AnswerDraft, error) {
	key := config.CacheKey.SessionAnswersKey(sessionID.String())
	prefix := questionID.String() + ":"

	all, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read cached drafts: %w", err)
	}

	var best *model.AnswerDraft
	for field, raw := range all {
		if !strings.HasPrefix(field, prefix) {
			continue
		}
		var cached cachedDraft
		if err := json.Unmarshal([]byte(raw), &cached); err != nil {
			continue
		}
		if best == nil || cached.SavedAt.After(best.LastModifiedAt) {
			best = &model.AnswerDraft{
				SessionID:      sessionID,
				QuestionID:     questionID,
				Language:       strings.TrimPrefix(field, prefix),
				Code:           cached.Code,
				LastModifiedAt: cached.SavedAt,
			}
		}
	}
	if best != nil {
		return best, nil
	}

	// Cache empty — the durable copy decides.
	row := r.pool.QueryRow(ctx,
		`SELECT session_id, question_id, language, code, updated_at
		 FROM answer_drafts
		 WHERE session_id = $1 AND question_id = $2
		 ORDER BY updated_at DESC
		 LIMIT 1`, sessionID, questionID)
	return scanDraft(row)
}

func (r *AnswerRepository) getDurable(ctx context.Context, sessionID, questionID uuid.UUID, language string) (*model.AnswerDraft, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT session_id, question_id, language, code, updated_at
		 FROM answer_drafts
		 WHERE session_id = $1 AND question_id = $2 AND language = $3`,
		sessionID, questionID, language)
	return scanDraft(row)
}

func scanDraft(row pgx.Row) (*model.AnswerDraft, error) {
	var d model.AnswerDraft
	err := row.Scan(&d.SessionID, &d.QuestionID, &d.Language, &d.Code, &d.LastModifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("scan draft: %w", err)
	}
	return &d, nil
}

// CachedAnswers returns the raw autosaved answers map for the state
// snapshot: field "<question_id>:<language>" → code.
func (r *AnswerRepository) CachedAnswers(ctx context.Context, sessionID uuid.UUID) (map[string]string, error) {
	key := config.CacheKey.SessionAnswersKey(sessionID.String())
	all, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read cached answers: %w", err)
	}

	answers := make(map[string]string, len(all))
	for field, raw := range all {
		var cached cachedDraft
		if err := json.Unmarshal([]byte(raw), &cached); err != nil {
			continue
		}
		answers[field] = cached.Code
	}
	return answers, nil
}
