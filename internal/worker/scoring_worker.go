package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/devarena/devarena-backend/internal/config"
	"github.com/devarena/devarena-backend/internal/repository"
	"github.com/devarena/devarena-backend/internal/scoring"
	"github.com/devarena/devarena-backend/internal/session"
)

const (
	ScorePollTimeout = 1 * time.Second

	// judgeBackoff is how long the worker sleeps after requeueing a job
	// because the judge was unreachable. Hammering a down judge only
	// delays every other job behind it.
	judgeBackoff = 5 * time.Second
)

// ScoringWorker consumes score_jobs_queue: it runs the scoring engine for
// each submitted session and attaches the result. Jobs are delivered
// at-least-once; AttachResult deduplicates, so a session is only ever
// scored to completion once.
type ScoringWorker struct {
	ctrl   *session.Controller
	engine *scoring.Engine
	rdb    *redis.Client
	log    zerolog.Logger
}

// NewScoringWorker creates a new ScoringWorker.
func NewScoringWorker(ctrl *session.Controller, engine *scoring.Engine, rdb *redis.Client, log zerolog.Logger) *ScoringWorker {
	return &ScoringWorker{
		ctrl:   ctrl,
		engine: engine,
		rdb:    rdb,
		log:    log.With().Str("component", "scoring_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *ScoringWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *ScoringWorker) processNext(ctx context.Context) {
	item, err := w.rdb.BLPop(ctx, ScorePollTimeout, config.WorkerKey.ScoreJobsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(item) < 2 {
		return
	}

	var job repository.ScoreJob
	if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		return
	}

	sessionID, err := uuid.Parse(job.SessionID)
	if err != nil {
		w.log.Error().Err(err).Str("session_id", job.SessionID).Msg("Invalid session id in job")
		return
	}

	if err := w.score(ctx, sessionID); err != nil {
		switch {
		case errors.Is(err, scoring.ErrJudgeUnavailable):
			w.log.Warn().Str("session_id", job.SessionID).Msg("Judge unavailable, requeueing")
			w.rdb.RPush(ctx, config.WorkerKey.ScoreJobsQueue, item[1])
			time.Sleep(judgeBackoff)
		case errors.Is(err, scoring.ErrJudgeRejected):
			// Permanent per-submission failure. Requeueing would wedge
			// the queue behind an unjudgeable draft.
			w.log.Error().Err(err).Str("session_id", job.SessionID).Msg("Judge rejected submission, dead-lettering job")
			w.rdb.RPush(ctx, config.WorkerKey.ScoreJobsDeadLetter, item[1])
		default:
			w.log.Error().Err(err).Str("session_id", job.SessionID).Msg("Scoring failed, requeueing")
			w.rdb.RPush(ctx, config.WorkerKey.ScoreJobsQueue, item[1])
			time.Sleep(time.Second)
		}
	}
}

func (w *ScoringWorker) score(ctx context.Context, sessionID uuid.UUID) error {
	s, err := w.ctrl.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			w.log.Warn().Str("session_id", sessionID.String()).Msg("Job for unknown session, dropping")
			return nil
		}
		return err
	}

	// Only terminal sessions are scorable; a stale job for a session that
	// somehow never submitted is dropped, the sweep re-enqueues it after
	// the terminal transition.
	if !s.Status.Terminal() {
		w.log.Warn().
			Str("session_id", sessionID.String()).
			Str("status", string(s.Status)).
			Msg("Job for non-terminal session, dropping")
		return nil
	}
	if s.Result != nil {
		return nil
	}

	result, err := w.engine.Score(ctx, s)
	if err != nil {
		return err
	}

	if _, err := w.ctrl.AttachResult(ctx, sessionID, result); err != nil {
		return err
	}

	w.log.Info().
		Str("session_id", sessionID.String()).
		Float64("total_score", result.TotalScore).
		Float64("max_score", result.MaxScore).
		Msg("Session scored")
	return nil
}
