package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/caregrid/scheduling/internal/config"
	"github.com/caregrid/scheduling/internal/db"
	redisclient "github.com/caregrid/scheduling/internal/redis"
	"github.com/caregrid/scheduling/internal/scheduling"
)

// slot-worker runs periodic calendar maintenance: it cancels REQUESTED
// appointments that outlived the request TTL without confirmation, and
// purges unreferenced free slots past the retention window.
func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "slot-worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("request_ttl", cfg.RequestTTL).
		Dur("slot_retention", cfg.SlotRetention).
		Msg("slot-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool, cfg.LockTimeout)
	locker := redisclient.NewRedisIntervalLocker(rdb, cfg.LockTTL, cfg.LockWaitBudget)
	svc := scheduling.NewService(repo, locker, nil, cfg, logger)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping slot-worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()

	cancelled, err := svc.CancelStaleRequested(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("stale request cancellation failed")
		return
	}

	purged, err := svc.PurgeOldSlots(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("slot purge failed")
		return
	}

	logger.Info().
		Int("cancelled", cancelled).
		Int64("purged", purged).
		Dur("took", time.Since(start)).
		Msg("maintenance run complete")
}
