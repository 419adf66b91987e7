package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/i18n"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/notify"
	"github.com/stemsi/exstem-proctor/internal/questionbank"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/router"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
	"github.com/stemsi/exstem-proctor/internal/worker"
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
		Dur("exam_duration", cfg.ExamDuration).
		Dur("grace_period", cfg.GracePeriod).
		Msg("Starting ExStem Proctor")

	// ─── Initialize Validator & Translations ───────────────────────────
	validator.Setup()

	catalog, err := i18n.NewCatalog(cfg.DefaultLang, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load message catalog")
	}

	// ─── Load Question Bank ────────────────────────────────────────────
	bank, err := loadBank(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load question bank")
	}
	log.Info().Int("mcq", len(bank.MCQs())).Int("saq", len(bank.SAQs())).Msg("Question bank loaded")

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

	// ─── Notification Sink ─────────────────────────────────────────────
	if cfg.SinkAccessKey == "" {
		log.Warn().Msg("SINK_ACCESS_KEY is not set, every submission will fail")
	}
	sink := notify.NewFormSink(notify.Config{
		URL:       cfg.SinkURL,
		AccessKey: cfg.SinkAccessKey,
		FromName:  cfg.SinkFromName,
		Timeout:   cfg.SinkTimeout,
	}, nil, log)

	// ─── Initialize Repositories ───────────────────────────────────────
	proctorRepo := repository.NewProctorRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool, rdb)
	archiveRepo := repository.NewArchiveRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	recorder := service.NewRecorder(rdb, cfg.ReportLocation, log)
	sessionService := service.NewSessionService(cfg, bank, sink, catalog, recorder, authService, log)
	proctorService := service.NewProctorService(proctorRepo, authService, log)
	monitorService := service.NewMonitorService(monitorRepo, sessionService, cfg.ReportLocation, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(proctorService, log),
		Session:  handler.NewSessionHandler(sessionService, catalog, log),
		Question: handler.NewQuestionHandler(bank),
		WS:       handler.NewWSHandler(catalog, log, cfg.AllowedOrigins),
		Monitor:  handler.NewMonitorHandler(monitorService, handler.NewRedisFeed(rdb), log),
		System: handler.NewSystemHandler(monitorRepo, sessionService, map[string]handler.Pinger{
			"postgres": pool,
			"redis":    handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		}, log),
	}
	limiters := router.NewLimiters(cfg)

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	violationWorker := worker.NewViolationWorker(rdb, archiveRepo, log)
	submissionWorker := worker.NewSubmissionWorker(rdb, archiveRepo, log)
	janitor := worker.NewJanitor(time.Minute, map[string]worker.SweepFunc{
		"idle_sessions": func(now time.Time) int { return sessionService.EvictIdle(now, cfg.SessionIdleTTL) },
		"rate_limiters": func(time.Time) int { return limiters.Prune(10 * time.Minute) },
	}, log)

	for _, start := range []func(context.Context){violationWorker.Start, submissionWorker.Start, janitor.Start} {
		workers.Add(1)
		go func(start func(context.Context)) {
			defer workers.Done()
			start(workerCtx)
		}(start)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, sessionService, handlers, limiters, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
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

	// 2. Disarm every session so no timer fires into a closing process.
	sessionService.CloseAll()

	// 3. Stop background workers and wait for their buffers to flush.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

func loadBank(cfg *config.Config) (*questionbank.Bank, error) {
	if cfg.QuestionBankPath == "" {
		return questionbank.Default()
	}
	return questionbank.Load(cfg.QuestionBankPath)
}
