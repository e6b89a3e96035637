package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"botadmin/internal/config"
	"botadmin/internal/crypto"
	"botadmin/internal/httpapi"
	"botadmin/internal/metrics"
	"botadmin/internal/queue"
	"botadmin/internal/storage"
	"botadmin/internal/store"
	"botadmin/internal/telegram"
	"botadmin/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(cfg.Log.Level)
	log.Info().
		Str("mode", cfg.AppMode).
		Str("db_driver", cfg.DB.Driver).
		Msg("starting botadmin")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := storage.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.AutoMigrate, "migrations")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer rdb.Close()

	keyring, err := crypto.NewKeyring(cfg.Crypto.CurrentKeyID, cfg.Crypto.Keys)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize keyring")
	}

	m := metrics.Global()

	// The hook runs while the store lock is held, so it must not call back
	// into the store. Persistence failures are logged and counted; the
	// in-memory state stays authoritative.
	onChange := func(snap store.Snapshot) {
		m.Mutations.Inc()
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer saveCancel()
		if err := db.SaveSnapshot(saveCtx, snap); err != nil {
			m.SnapshotFailures.Inc()
			log.Error().Err(err).Msg("failed to persist snapshot")
			return
		}
		m.SnapshotsWritten.Inc()
	}

	st := store.New(store.Config{
		IDs:      store.NewIDSource(),
		Logger:   log.Logger,
		OnChange: onChange,
	})

	loadCtx, loadCancel := context.WithTimeout(ctx, 10*time.Second)
	snap, err := db.LoadSnapshot(loadCtx)
	loadCancel()
	switch {
	case err == nil:
		st.Restore(snap)
		log.Info().Int("users", len(snap.Users)).Int("bots", len(snap.Bots)).Msg("state restored from snapshot")
	case errors.Is(err, storage.ErrNotFound):
		log.Info().Msg("no snapshot found, starting empty")
	default:
		log.Fatal().Err(err).Msg("failed to load snapshot")
	}
	if err := st.Seed(cfg.Auth.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("failed to seed admin user")
	}

	jobQueue := queue.NewStreamQueue(rdb, cfg.Redis.QueueStream, cfg.Redis.QueueGroup, cfg.Worker.ConsumerName, cfg.Redis.QueueBlock)

	errCh := make(chan error, 4)
	var httpServer *http.Server

	if cfg.AppMode == config.ModeAPI || cfg.AppMode == config.ModeAll {
		api := httpapi.New(httpapi.Config{
			Store:     st,
			DB:        db,
			Queue:     jobQueue,
			Keyring:   keyring,
			Limiter:   queue.NewOrgRateLimiter(rdb, cfg.Rate.OrgPerHour),
			JWTSecret: cfg.Auth.JWTSecret,
			TokenTTL:  cfg.Auth.TokenTTL,
			InviteTTL: cfg.Auth.InviteTTL,
			Logger:    log.Logger,
			Metrics:   m,
		})
		httpServer = &http.Server{
			Addr:              cfg.HTTP.ListenAddr,
			Handler:           api.Router(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.HTTP.ReadTimeout,
		}
		go func() {
			log.Info().Str("addr", cfg.HTTP.ListenAddr).Msg("http server started")
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()

		bridge := telegram.NewBridge(telegram.Config{
			Store:   st,
			Keyring: keyring,
			Dedupe:  queue.NewUpdateDeduplicator(rdb, cfg.Redis.DedupeTTL),
			Logger:  log.Logger,
			Metrics: m,
		})
		go bridge.Run(ctx)
	}

	if cfg.AppMode == config.ModeWorker || cfg.AppMode == config.ModeAll {
		go resetUsageLoop(ctx, st)
		w := worker.New(worker.Config{
			Store:         st,
			Queue:         jobQueue,
			StageDelay:    cfg.Worker.StageDelay,
			MaxJobRetries: cfg.Worker.MaxRetries,
			Logger:        log.Logger,
			Metrics:       m,
		})
		go func() {
			if err := w.Start(ctx, cfg.Worker.Concurrency); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("worker failed: %w", err)
			}
		}()
		log.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("worker started")
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to stop http server")
		}
	}

	log.Info().Msg("stopped")
}

// resetUsageLoop zeroes per-organization API counters when the calendar
// month rolls over.
func resetUsageLoop(ctx context.Context, st *store.Store) {
	current := time.Now().UTC().Month()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m := time.Now().UTC().Month(); m != current {
				current = m
				st.ResetMonthlyUsage()
				log.Info().Msg("monthly api usage counters reset")
			}
		}
	}
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
