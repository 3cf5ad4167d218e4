// Command seed fills the configured store with the sample artists and their
// posts. -fake adds random posts on top.
//
//	go run ./cmd/seed -fake 200 -fake-users 20
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/microblog/internal/config"
	"github.com/sakif/microblog/internal/seed"
	"github.com/sakif/microblog/internal/server"
)

func main() {
	fakePosts := flag.Int("fake", 0, "number of random posts to add")
	fakeUsers := flag.Int("fake-users", 10, "number of random users when -fake is set")
	maxLikes := flag.Int("max-likes", 10, "most posts each random user likes")
	seedValue := flag.Int64("seed", 0, "random seed (0 = from clock)")
	flag.Parse()

	if _, err := config.LoadDotenv(".env"); err != nil {
		slog.Error("failed to load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if cfg.Store == config.StoreMemory {
		logger.Error("nothing to seed: STORE=memory does not persist")
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Error("failed to create database directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := server.OpenStore(cfg)
	if err != nil {
		logger.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	opts := seed.Options{FakePosts: *fakePosts, MaxLikes: *maxLikes}
	if *fakePosts > 0 {
		opts.FakeUsers = *fakeUsers
	}

	s := seed.New(store, store, *seedValue, logger)
	if _, err := s.Run(context.Background(), opts); err != nil {
		logger.Error("seeding failed", slog.String("error", err.Error()))
		store.Close()
		os.Exit(1)
	}
}
