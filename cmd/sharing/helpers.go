package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/Veraticus/sharing-ingest/internal/config"
	"github.com/Veraticus/sharing-ingest/internal/service"
	"github.com/Veraticus/sharing-ingest/internal/storage"
)

// loadConfig decodes the merged file, env, and flag settings.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// initStorage opens the run history database and brings its schema up to date.
func initStorage(ctx context.Context, dbPath string) (service.Storage, error) {
	if dbPath == "" {
		dbPath = config.ExpandPath(config.DefaultDatabasePath)
	}

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}
