package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enisar25/SocialApp/internal/chat"
	"github.com/enisar25/SocialApp/internal/directory"
	"github.com/enisar25/SocialApp/internal/server"
	"github.com/enisar25/SocialApp/internal/store"
	"github.com/enisar25/SocialApp/pkg/config"
	"github.com/enisar25/SocialApp/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if level, err := logging.Parse(cfg.Logging.Level); err == nil {
		logger = logging.New(level)
		slog.SetDefault(logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chatStore, userDirectory, cleanup, err := buildBackends(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backends", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	app := server.NewApp(ctx, logger, cfg, chatStore, userDirectory)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}

// buildBackends wires the conversation store and user directory. With a DSN
// both run on one shared Postgres pool; without one the gateway falls back to
// in-memory state for development.
func buildBackends(ctx context.Context, logger *slog.Logger, cfg *config.Config) (chat.Store, chat.Directory, func(), error) {
	if cfg.Database.DSN == "" {
		logger.Warn("No database DSN configured; using in-memory store and directory")
		return store.NewMemoryStore(), directory.NewMemoryDirectory(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	pgStore, err := store.NewPostgresStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	return pgStore, directory.NewPostgresDirectory(pool), pool.Close, nil
}
