package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slothold/internal/api"
	"slothold/internal/broadcast"
	"slothold/internal/config"
	"slothold/internal/database"
	"slothold/internal/domain"
	"slothold/internal/engine"
	"slothold/internal/logging"
	"slothold/internal/metrics"
	"slothold/internal/store"
	"slothold/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	kv, err := initStore(cfg, &logger)
	if err != nil {
		return err
	}
	defer kv.Close()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	metrics.Register()

	tracker := broadcast.NewTracker()
	broadcaster := broadcast.New(kv, tracker, &logger)
	eng := engine.New(kv, broadcaster, db, cfg.Reservation, &logger)
	sweeper := worker.NewSweeper(kv, broadcaster, cfg.Reservation.Sweep(), &logger)
	httpServer := api.NewServer(cfg.API, eng, kv, db, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweeper.Run(ctx)
	startMetricsListener(ctx, cfg, &logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// initStore connects to Redis when configured and falls back to the in-process
// store otherwise. The fallback is for local development only: it cannot
// coordinate holds across more than one process.
func initStore(cfg *config.Config, logger *zerolog.Logger) (domain.Store, error) {
	if cfg.Redis.Address == "" {
		logger.Warn().Msg("no redis address configured, using in-memory store")
		return store.NewMemory(), nil
	}

	client := store.NewRedisClient(cfg.Redis)
	kv := store.NewRedis(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := kv.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")
	return kv, nil
}

func startMetricsListener(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("metrics listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
