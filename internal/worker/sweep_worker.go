package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/devarena/devarena-backend/internal/clock"
	"github.com/devarena/devarena-backend/internal/session"
)

// SweepBatchSize caps how many sessions one sweep pass touches.
const SweepBatchSize = 200

// SweepWorker is the server-side safety net behind the per-connection
// countdown watchers. Each pass expires sessions whose deadline or grace
// window passed while no client was connected, then re-enqueues scoring for
// terminal sessions whose result is still missing (a lost enqueue or a
// judge outage at submit time).
type SweepWorker struct {
	store    session.Store
	ctrl     *session.Controller
	scores   session.ScoreQueue
	clock    clock.Clock
	interval time.Duration
	log      zerolog.Logger
}

// NewSweepWorker creates a new SweepWorker.
func NewSweepWorker(store session.Store, ctrl *session.Controller, scores session.ScoreQueue, clk clock.Clock, interval time.Duration, log zerolog.Logger) *SweepWorker {
	return &SweepWorker{
		store:    store,
		ctrl:     ctrl,
		scores:   scores,
		clock:    clk,
		interval: interval,
		log:      log.With().Str("component", "sweep_worker").Logger(),
	}
}

// Start begins the periodic sweep loop. Call in a goroutine.
func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.expireDue(ctx)
			w.reconcileUnscored(ctx)
		}
	}
}

func (w *SweepWorker) expireDue(ctx context.Context) {
	ids, err := w.store.FindDue(ctx, w.clock.Now(), SweepBatchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("FindDue error")
		return
	}

	for _, id := range ids {
		// Tick races with connected watchers and manual submits; the CAS
		// loser simply observes the winner's terminal record.
		if _, err := w.ctrl.Tick(ctx, id); err != nil {
			w.log.Error().Err(err).Str("session_id", id.String()).Msg("Sweep tick error")
		}
	}

	if len(ids) > 0 {
		w.log.Info().Int("count", len(ids)).Msg("Swept overdue sessions")
	}
}

func (w *SweepWorker) reconcileUnscored(ctx context.Context) {
	ids, err := w.store.FindUnscored(ctx, SweepBatchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("FindUnscored error")
		return
	}

	for _, id := range ids {
		if err := w.scores.Enqueue(ctx, id); err != nil {
			w.log.Error().Err(err).Str("session_id", id.String()).Msg("Reconcile enqueue error")
		}
	}

	if len(ids) > 0 {
		w.log.Info().Int("count", len(ids)).Msg("Re-enqueued unscored sessions")
	}
}
