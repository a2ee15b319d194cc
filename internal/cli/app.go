// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared command wiring: config, storage, history, cache.
package cli

import (
	"context"
	"fmt"

	"github.com/jeranaias/contextvault/internal/cache"
	"github.com/jeranaias/contextvault/internal/config"
	"github.com/jeranaias/contextvault/internal/geo"
	"github.com/jeranaias/contextvault/internal/history"
	"github.com/jeranaias/contextvault/internal/storage"
)

// App bundles the collaborators every command needs. Commands build one,
// run, and Close it.
type App struct {
	Config  *config.Config
	Backend storage.Backend
	Cache   *cache.Cache
}

// NewApp loads configuration, opens the storage backend, and builds the
// cache. Flags override the loaded config.
func NewApp(ctx context.Context, parser *ArgParser) (*App, error) {
	cfg := config.Global().Clone()

	if dir := parser.Flag("data-dir"); dir != "" {
		cfg.Storage.DataDir = dir
	}

	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}

	var backend storage.Backend
	if cfg.Storage.PreferSQLite {
		backend, err = storage.Open(dataDir)
	} else {
		backend, err = storage.NewFileBackend(dataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	store := history.NewStore(backend)

	cacheCfg := &cache.Config{
		MaxTokens:              cfg.Budget.MaxTokens,
		ReserveTokens:          cfg.Budget.ReserveTokens,
		MaxMessageTokens:       cfg.Budget.MaxMessageTokens,
		MaxConversationLength:  cfg.Budget.MaxConversationLength,
		SummarizationThreshold: cfg.Summarization.Threshold,
		SummaryMaxLength:       cfg.Summarization.MaxLength,
	}
	if cfg.Location.Enabled {
		cacheCfg.Locator = &geo.FixedLocator{
			Lat: cfg.Location.FixedLat,
			Lng: cfg.Location.FixedLng,
		}
		geoCfg := geo.DefaultClientConfig()
		if cfg.Location.GeocoderURL != "" {
			geoCfg.BaseURL = cfg.Location.GeocoderURL
		}
		cacheCfg.Geocoder = geo.NewNominatimClient(geoCfg)
	}

	return &App{
		Config:  cfg,
		Backend: backend,
		Cache:   cache.New(ctx, store, cacheCfg),
	}, nil
}

// Close releases the storage backend.
func (a *App) Close() {
	if a.Backend != nil {
		a.Backend.Close()
	}
}
