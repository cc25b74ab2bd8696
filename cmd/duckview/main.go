package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/seantiz/duckview/internal/api"
	"github.com/seantiz/duckview/internal/bundle/builtin"
	"github.com/seantiz/duckview/internal/config"
	"github.com/seantiz/duckview/internal/dataset"
	"github.com/seantiz/duckview/internal/engine"
	"github.com/seantiz/duckview/internal/store"
	"github.com/seantiz/duckview/internal/view"
)

const teardownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("duckview: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"bundles", cfg.Bundles,
		"query_timeout", cfg.QueryTimeout.String(),
	)

	profiles, err := config.LoadProfiles(cfg.ProfilesPath)
	if err != nil {
		log.Fatalf("failed to load profiles: %v", err)
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	reg := builtin.Registry()
	for _, info := range reg.List(context.Background()) {
		logger.Info("engine bundle", "name", info.Name, "available", info.Available, "reason", info.Reason)
	}

	fetcher := dataset.NewFetcher(dataset.FetcherConfig{
		MaxBytes: cfg.MaxDatasetBytes,
		S3: dataset.S3Config{
			Endpoint: cfg.S3Endpoint,
			Region:   cfg.S3Region,
		},
	})

	sessions := engine.NewManager(engine.ManagerConfig{
		Registry:     reg,
		Bundles:      cfg.Bundles,
		Fetcher:      fetcher,
		WorkDir:      cfg.WorkDir,
		QueryTimeout: cfg.QueryTimeout,
		Logger:       logger,
	})

	views := view.NewController(view.ControllerConfig{
		Profiles: profiles,
		Opener:   sessions,
		History:  db,
		Logger:   logger,
	})

	srv := api.NewServer(cfg.ListenAddr, db, reg, sessions, views, logger)

	runErr := srv.Run()

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if err := views.UnmountAll(ctx); err != nil {
		logger.Warn("unmount views", "error", err)
	}
	if err := sessions.CloseAll(ctx); err != nil {
		logger.Warn("close sessions", "error", err)
	}

	if runErr != nil {
		log.Fatalf("server error: %v", runErr)
	}
}
