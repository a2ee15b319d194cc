// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the persistence backends for the conversation document.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jeranaias/contextvault/internal/model"
	"github.com/jeranaias/contextvault/internal/util"
)

// DocumentFile is the flat-store filename under the data directory.
const DocumentFile = "context.json"

// =============================================================================
// FILE BACKEND
// =============================================================================

// FileBackend stores the conversation document as a single JSON file.
// It is the fallback when the SQLite store cannot be opened. Writes are
// atomic (temp file, fsync, rename); timestamps survive the round trip
// because encoding/json reconstitutes time.Time from RFC 3339 strings.
type FileBackend struct {
	dir string
}

// NewFileBackend creates a file backend rooted at the given directory.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &StorageError{Message: "failed to create data directory", Cause: err}
	}
	return &FileBackend{dir: dir}, nil
}

// Name identifies the backend kind.
func (b *FileBackend) Name() string {
	return "file"
}

// Close is a no-op for the file backend.
func (b *FileBackend) Close() error {
	return nil
}

// =============================================================================
// DOCUMENT OPERATIONS
// =============================================================================

// Save serializes the whole document to the fixed file.
func (b *FileBackend) Save(ctx context.Context, doc *model.ConversationDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &StorageError{Message: "failed to encode document", Cause: err}
	}

	if err := util.AtomicWriteFile(b.documentPath(), data, 0644); err != nil {
		return &StorageError{Message: "failed to write document", Cause: err}
	}
	return nil
}

// Load reads and deserializes the document.
func (b *FileBackend) Load(ctx context.Context) (*model.ConversationDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.documentPath())
	if os.IsNotExist(err) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, &StorageError{Message: "failed to read document", Cause: err}
	}

	var doc model.ConversationDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &StorageError{Message: "failed to decode document", Cause: err}
	}

	return &doc, nil
}

// Clear removes the document file. A missing file is not an error.
func (b *FileBackend) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(b.documentPath())
	if err != nil && !os.IsNotExist(err) {
		return &StorageError{Message: "failed to clear document", Cause: err}
	}
	return nil
}

// SelfTest round-trips a synthetic file next to the document file.
func (b *FileBackend) SelfTest(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	probePath := filepath.Join(b.dir, ".selftest")
	probeValue := []byte(`{"probe":true}`)

	if err := util.AtomicWriteFile(probePath, probeValue, 0644); err != nil {
		return false
	}

	readBack, err := os.ReadFile(probePath)
	if err != nil || !bytes.Equal(readBack, probeValue) {
		os.Remove(probePath)
		return false
	}

	return os.Remove(probePath) == nil
}

// documentPath returns the fixed path of the document file.
func (b *FileBackend) documentPath() string {
	return filepath.Join(b.dir, DocumentFile)
}
