// Package main is the entry point for the microblog server.
//
// main stays small. It loads configuration, builds the logger, makes sure the
// database directory exists and hands everything to internal/server.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/microblog/internal/config"
	"github.com/sakif/microblog/internal/server"
)

func main() {
	// === 1. ENVIRONMENT ===
	// A .env file is optional. Real environment variables always win.
	envFile, err := config.LoadDotenv(".env")
	if err != nil {
		slog.Error("failed to load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)
	if envFile != "" {
		logger.Debug("loaded environment file", slog.String("path", envFile))
	}

	// === 4. DATABASE DIRECTORY ===
	// Like `mkdir -p`; SQLite creates the file but not its parent directories.
	if cfg.Store == config.StoreSQLite {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
