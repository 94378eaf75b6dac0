package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/devarena/devarena-backend/internal/config"
)

// ScoreJob is the queue payload consumed by the scoring worker.
type ScoreJob struct {
	SessionID string `json:"session_id"`
}

// RedisScoreQueue implements session.ScoreQueue on the Redis list the
// scoring worker consumes with BLPop.
type RedisScoreQueue struct {
	rdb *redis.Client
}

// NewRedisScoreQueue creates a new RedisScoreQueue.
func NewRedisScoreQueue(rdb *redis.Client) *RedisScoreQueue {
	return &RedisScoreQueue{rdb: rdb}
}

// Enqueue implements session.ScoreQueue.
func (q *RedisScoreQueue) Enqueue(ctx context.Context, sessionID uuid.UUID) error {
	raw, err := json.Marshal(ScoreJob{SessionID: sessionID.String()})
	if err != nil {
		return fmt.Errorf("marshal score job: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.ScoreJobsQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue score job: %w", err)
	}
	return nil
}
