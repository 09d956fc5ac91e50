// Command server runs the greeting-card moderation API.
//
// HOW TO RUN:
//
//	JWT_SECRET=$(openssl rand -hex 32) ADMIN_PASSWORD=changeme go run ./cmd/server
//
// or put the settings in config.yaml / .env (see config.example.yaml).
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sakif/greeting-cards/internal/config"
	"github.com/sakif/greeting-cards/internal/server"
)

func main() {
	// === 1. LOAD .env ===
	// A .env file is a convenience for local development. Variables already
	// set in the environment win, and a missing file is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to read .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. READ CONFIGURATION ===
	// config.Load reads CONFIG_PATH (or ./config.yaml when present), lets
	// environment variables override it, and validates the result.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. SET UP LOGGING ===
	// slog is Go's structured logger. Text is easier to read in a terminal;
	// JSON is easier for log collectors.
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	// === 4. DATABASE DIRECTORY ===
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 5. SHUTDOWN SIGNALS ===
	// ctx is cancelled on Ctrl+C or SIGTERM; Start then drains in-flight
	// requests and returns.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === 6. CREATE AND START THE SERVER ===
	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
