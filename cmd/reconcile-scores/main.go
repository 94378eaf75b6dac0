package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/devarena/devarena-backend/internal/config"
	"github.com/devarena/devarena-backend/internal/database"
	"github.com/devarena/devarena-backend/internal/logger"
	"github.com/devarena/devarena-backend/internal/repository"
)

// One-shot reconciliation: re-enqueue every terminal session whose result
// is still null. The sweep worker does this continuously; this tool is for
// operators recovering from a long judge outage without waiting for the
// next sweep pass.
func main() {
	var limit int
	flag.IntVar(&limit, "limit", 1000, "Maximum sessions to re-enqueue")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	sessionRepo := repository.NewSessionRepository(pool)
	scoreQueue := repository.NewRedisScoreQueue(rdb)

	ids, err := sessionRepo.FindUnscored(ctx, limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query unscored sessions")
	}

	enqueued := 0
	for _, id := range ids {
		if err := scoreQueue.Enqueue(ctx, id); err != nil {
			log.Error().Err(err).Str("session_id", id.String()).Msg("Enqueue failed")
			continue
		}
		enqueued++
	}

	fmt.Printf("Re-enqueued %d of %d unscored sessions\n", enqueued, len(ids))
}
