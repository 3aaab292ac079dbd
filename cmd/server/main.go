package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tallerfranco/internal/config"
	"tallerfranco/internal/infra"
	"tallerfranco/internal/repository"
	"tallerfranco/internal/router"
	"tallerfranco/internal/service"
	"tallerfranco/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, infra.PoolConfig{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer func() {
		if err := infra.CloseDatabase(db); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}()

	if cfg.AutoMigrate {
		if err := infra.Migrate(db); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis only backs low-stock alerts; without it sales keep working.
	var (
		rdb        *redis.Client
		dispatcher *worker.Dispatcher
		scheduler  *cron.Cron
	)
	rdb, err = infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, low-stock alerts disabled")
		rdb = nil
	} else {
		queueCB := infra.NewCircuitBreaker(infra.DefaultCBConfig("redis-queue"))
		dispatcher = worker.NewDispatcher(rdb, queueCB)

		pool := worker.NewPool(rdb)
		pool.Register(worker.QueueAlertas, worker.JobAlertaStock, worker.NewAlertaStockHandler(rdb))
		pool.Start(ctx, cfg.WorkerPoolSize)

		inventarioSvc := service.NewInventarioService(
			repository.NewProductoRepository(db),
			repository.NewSerialRepository(db),
			repository.NewParcialRepository(db),
			repository.NewMovimientoStockRepository(db),
			rdb,
		)
		scheduler, err = worker.StartAlertasCron(ctx, cfg.AlertasCron, rdb, inventarioSvc.AlertasDesdeDB)
		if err != nil {
			log.Fatal().Err(err).Str("spec", cfg.AlertasCron).Msg("invalid ALERTAS_CRON")
		}
	}

	r := router.New(cfg, db, rdb, dispatcher)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("taller franco backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	cancel()
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}

// setupLogger: pretty console in dev, JSON in prod. Level from LOG_LEVEL.
func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
