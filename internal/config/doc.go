// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// contextvault.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - StorageConfig: Persistence backend selection and data directory
//   - BudgetConfig: Token budget settings
//   - SummarizationConfig: Summarization tuning
//   - Watcher: Hot reload of the config file via fsnotify
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (CONTEXTVAULT_*)
//   - ~/.contextvault/config.toml
//   - ~/.contextvault/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	budget := cfg.Budget.MaxTokens
//	threshold := cfg.Summarization.Threshold
package config
