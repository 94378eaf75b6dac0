package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/devarena/devarena-backend/internal/clock"
	"github.com/devarena/devarena-backend/internal/config"
	"github.com/devarena/devarena-backend/internal/database"
	"github.com/devarena/devarena-backend/internal/handler"
	"github.com/devarena/devarena-backend/internal/judge"
	"github.com/devarena/devarena-backend/internal/logger"
	"github.com/devarena/devarena-backend/internal/repository"
	"github.com/devarena/devarena-backend/internal/router"
	"github.com/devarena/devarena-backend/internal/scoring"
	"github.com/devarena/devarena-backend/internal/service"
	"github.com/devarena/devarena-backend/internal/session"
	"github.com/devarena/devarena-backend/internal/validator"
	"github.com/devarena/devarena-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting DevArena Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	sessionRepo := repository.NewSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool, rdb)
	scoreQueue := repository.NewRedisScoreQueue(rdb)
	assessmentRepo := repository.NewAssessmentRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	participantRepo := repository.NewParticipantRepository(pool)

	// ─── Session Engine ────────────────────────────────────────────────
	clk := clock.System{}
	ctrl := session.NewController(sessionRepo, answerRepo, scoreQueue, clk, log)
	timer := session.NewTimer(clk, cfg.TickInterval)

	// ─── Scoring ───────────────────────────────────────────────────────
	judgeClient := judge.NewClient(cfg.JudgeURL, cfg.JudgeTimeout, log)
	engine := scoring.NewEngine(answerRepo, questionRepo, judgeClient, log)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	portalService := service.NewPortalService(ctrl, timer, assessmentRepo, questionRepo, answerRepo, log)

	// Assessments override the global grace window; the monitor falls
	// back to cfg.IntegrityGrace when resolution fails.
	monitor := session.NewMonitor(ctrl, cfg.IntegrityDebounce, cfg.IntegrityGrace, portalService.GraceWindow, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService, participantRepo),
		Portal:     handler.NewPortalHandler(portalService),
		Session:    handler.NewSessionHandler(ctrl, portalService),
		Instructor: handler.NewInstructorHandler(sessionRepo),
		WS:         handler.NewWSHandler(ctrl, portalService, monitor, timer, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	answerWorker := worker.NewAnswerWorker(pool, rdb, log)
	scoringWorker := worker.NewScoringWorker(ctrl, engine, rdb, log)
	sweepWorker := worker.NewSweepWorker(sessionRepo, ctrl, scoreQueue, clk, cfg.SweepInterval, log)

	go answerWorker.Start(workerCtx)
	go scoringWorker.Start(workerCtx)
	go sweepWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
