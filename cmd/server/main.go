// Command server runs the CarLog backend: the HTTP API, the daily reminder
// scheduler and the recommendation cache over a SQLite or Neo4j store.
//
// @title                      CarLog API
// @version                    1.0
// @description                Vehicle maintenance reminders and recommendations.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/carlog-backend/internal/advisor"
	"github.com/tbourn/carlog-backend/internal/config"
	"github.com/tbourn/carlog-backend/internal/graph"
	httpapi "github.com/tbourn/carlog-backend/internal/http"
	"github.com/tbourn/carlog-backend/internal/http/handlers"
	"github.com/tbourn/carlog-backend/internal/notify"
	"github.com/tbourn/carlog-backend/internal/observability"
	"github.com/tbourn/carlog-backend/internal/repo"
	"github.com/tbourn/carlog-backend/internal/scheduler"
	"github.com/tbourn/carlog-backend/internal/services"
	"github.com/tbourn/carlog-backend/internal/sysutil"
)

var version = "dev"

// store is what both persistence backends provide.
type store interface {
	services.UserRepository
	services.VehicleRepository
	services.RecommendationStore
	services.AuditLog
	handlers.AuditReader
	handlers.Pinger
}

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	setupLogging(cfg)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	log.Logger = log.With().Str("service", cfg.OTEL.ServiceName).Str("version", version).Logger()
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Reminder pipeline.
	dispatcher := services.NewDispatcher(st, notify.NewTwilioSMS(cfg.Twilio), notify.LogEmail{From: cfg.EmailFrom})
	dispatcher.SiteURL = cfg.SiteURL
	batch := services.NewReminderService(st, st, dispatcher)
	batch.Concurrency = cfg.Scheduler.Concurrency

	sched, closeLock, err := newScheduler(ctx, cfg, batch)
	if err != nil {
		return err
	}
	defer closeLock()

	// Recommendations.
	var provider services.RecommendationProvider
	switch adv, err := advisor.New(cfg.Advisor); {
	case errors.Is(err, advisor.ErrNotConfigured):
		log.Warn().Msg("OPENAI_API_KEY not set; only cached recommendations will be served")
	case err != nil:
		return fmt.Errorf("advisor: %w", err)
	default:
		provider = adv
	}
	cache := services.NewRecommendationCache(st, st)
	recs := services.NewRecommendationService(st, cache, provider)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, handlers.New(sched, st, recs, st), cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		log.Info().Str("time", cfg.Scheduler.Time).Str("tz", cfg.Scheduler.Timezone).Msg("reminder scheduler started")
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.StoreBackend).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	// Let an in-flight batch finish before the listener goes away.
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout)
	defer cancel()
	if err := sched.Stop(sctx); err != nil {
		log.Warn().Err(err).Msg("reminder run cancelled at shutdown")
	}
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (store, func(), error) {
	switch cfg.StoreBackend {
	case "neo4j":
		client, err := graph.Open(ctx, cfg.Neo4j)
		if err != nil {
			return nil, nil, fmt.Errorf("neo4j: %w", err)
		}
		closeFn := func() {
			cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Close(cctx); err != nil {
				log.Warn().Err(err).Msg("neo4j close")
			}
		}
		return graph.NewStore(client), closeFn, nil
	default:
		db, err := repo.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		if err := repo.AutoMigrate(db); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return repo.NewStore(db), closeFn, nil
	}
}

func newScheduler(ctx context.Context, cfg config.Config, runner scheduler.Runner) (*scheduler.Scheduler, func(), error) {
	hour, minute, err := config.ParseClock(cfg.Scheduler.Time)
	if err != nil {
		return nil, nil, err
	}
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, nil, err
	}

	opts := scheduler.Options{Hour: hour, Minute: minute, Location: loc}
	closeFn := func() {}
	if cfg.Scheduler.RedisAddr != "" {
		lock, err := scheduler.NewRedisLock(ctx, cfg.Scheduler.RedisAddr, cfg.Scheduler.RedisLockTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis lock: %w", err)
		}
		opts.Lock = lock
		closeFn = func() { _ = lock.Close() }
	}

	s, err := scheduler.New(runner, opts)
	if err != nil {
		return nil, nil, err
	}
	return s, closeFn, nil
}
