// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the persistence backends for the conversation document.
package storage

import (
	"context"
	"path/filepath"

	"github.com/jeranaias/contextvault/internal/model"
)

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// Backend is the contract for durable storage of the single conversation
// document. Implementations surface I/O failures on Save/Load/Clear rather
// than swallowing them; SelfTest never returns an error, only false.
type Backend interface {
	// Save persists the document, replacing any previous one.
	Save(ctx context.Context, doc *model.ConversationDocument) error

	// Load retrieves the document. Returns ErrDocumentNotFound when nothing
	// has been saved yet.
	Load(ctx context.Context) (*model.ConversationDocument, error)

	// Clear removes the persisted document. Clearing an empty store is not
	// an error.
	Clear(ctx context.Context) error

	// SelfTest round-trips a synthetic record end-to-end (write, read,
	// verify, delete). Returns false, never an error, on any failure.
	SelfTest(ctx context.Context) bool

	// Name identifies the backend kind ("sqlite" or "file").
	Name() string

	// Close releases backend resources.
	Close() error
}

// =============================================================================
// BACKEND SELECTION
// =============================================================================

// DatabaseFile is the SQLite database filename under the data directory.
const DatabaseFile = "context.db"

// Open selects a backend for the given data directory: it probes the SQLite
// store once and falls back to the flat file store if the probe fails. The
// selection is fixed for the lifetime of the returned backend; there is no
// per-call re-probing.
func Open(dataDir string) (Backend, error) {
	sqlite, err := NewSQLiteBackend(filepath.Join(dataDir, DatabaseFile))
	if err == nil {
		return sqlite, nil
	}

	return NewFileBackend(dataDir)
}
