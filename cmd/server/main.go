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

	"eventpos/internal/config"
	"eventpos/internal/engine"
	"eventpos/internal/infra"
	"eventpos/internal/metrics"
	"eventpos/internal/repository"
	"eventpos/internal/router"
	"eventpos/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	loc, _ := cfg.Location()

	db, err := infra.NewDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to access sql pool")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.MetricsPrefix, reg)

	// ── Infrastructure ───────────────────────────────────────────────────────
	cbCfg := infra.MailCBConfig()
	cbCfg.OnTransition = func(from, to infra.CBState) {
		m.SetMailBreakerState(int(to))
		log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("mail relay circuit changed state")
	}
	mailCB := infra.NewCircuitBreaker(cbCfg)
	mailer := infra.NewMailer(cfg, mailCB)
	dispatcher := worker.NewDispatcher(rdb)

	// ── Engine ───────────────────────────────────────────────────────────────
	eng := engine.New(db, engine.Options{
		StrictStock: cfg.StrictStock,
		Location:    loc,
		Jobs:        dispatcher,
		Metrics:     m,
	})
	if open, err := eng.Registers.ListOpen(ctx, nil); err != nil {
		log.Warn().Err(err).Msg("could not list open registers")
	} else {
		log.Info().Int("open_registers", len(open)).Msg("engine ready")
	}

	// ── Workers ──────────────────────────────────────────────────────────────
	pool := worker.NewPool(rdb, m)
	pool.Register(worker.QueueStockAlert, worker.NewStockAlertWorker(mailer, cfg.AlertEmailTo))
	pool.Register(worker.QueueClosureReport, worker.NewClosureReportWorker(repository.NewCashRegisterRepository(db), mailer, cfg.AlertEmailTo, cfg.ReportStoragePath))
	pool.Start(ctx, cfg.WorkerPoolSize)

	worker.StartReplayCron(ctx, worker.ReplayCronConfig{
		RDB:    rdb,
		CB:     mailCB,
		Queues: []string{worker.QueueStockAlert, worker.QueueClosureReport},
	})

	// ── Ops HTTP ─────────────────────────────────────────────────────────────
	r := router.New(cfg, router.Deps{DB: sqlDB, Redis: rdb, Mailer: mailer, Gatherer: reg})
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.OpsPort),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("eventpos ops listening on :%d", cfg.OpsPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	cancel()
	pool.Wait()
	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close")
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn().Err(err).Msg("postgres close")
	}
	log.Info().Msg("exited")
}

// setupLogger: dev pretty, prod JSON.
func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
