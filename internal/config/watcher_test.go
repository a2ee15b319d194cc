// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// WATCHER TESTS
// =============================================================================

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()
	w.debounce = 50 * time.Millisecond

	require.NoError(t, w.Watch())

	updated := Default()
	updated.Budget.MaxTokens = 24000
	require.NoError(t, SaveTOML(updated, path))

	select {
	case cfg := <-reloaded:
		require.Equal(t, 24000, cfg.Budget.MaxTokens)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload within timeout")
	}
}

// TestWatcherSurvivesAtomicRename tests that a rename-into-place write, the
// pattern used by atomic file writers, still triggers a reload even though
// the original inode is gone.
func TestWatcherSurvivesAtomicRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()
	w.debounce = 50 * time.Millisecond

	require.NoError(t, w.Watch())

	updated := Default()
	updated.Budget.ReserveTokens = 1500
	tmp := filepath.Join(dir, "config.toml.tmp")
	require.NoError(t, SaveTOML(updated, tmp))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case cfg := <-reloaded:
		require.Equal(t, 1500, cfg.Budget.ReserveTokens)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload after rename")
	}
}

func TestWatcherIgnoresBrokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	called := make(chan struct{}, 1)
	w, err := NewWatcher(path, func(*Config) {
		select {
		case called <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()
	w.debounce = 50 * time.Millisecond

	require.NoError(t, w.Watch())

	require.NoError(t, os.WriteFile(path, []byte("max_tokens = {{{"), 0600))

	select {
	case <-called:
		t.Error("callback fired for unparseable config")
	case <-time.After(time.Second):
	}
}
