// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the persistence backends for the conversation document.
package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeranaias/contextvault/internal/model"
)

// testDocument builds a small document with known token counts.
func testDocument() *model.ConversationDocument {
	doc := model.NewConversationDocument()
	doc.Append(model.NewUserMessage("What is the weather like?"))
	doc.Append(model.NewAssistantMessage("I have no live weather data."))
	return doc
}

// =============================================================================
// SQLITE BACKEND TESTS
// =============================================================================

func TestSQLiteBackend_SaveAndLoad(t *testing.T) {
	backend, err := NewSQLiteBackend(filepath.Join(t.TempDir(), DatabaseFile))
	if err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	defer backend.Close()

	ctx := context.Background()
	doc := testDocument()

	if err := backend.Save(ctx, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(loaded.Messages) != 2 {
		t.Fatalf("Loaded message count = %d, want 2", len(loaded.Messages))
	}
	if loaded.TotalTokens != doc.TotalTokens {
		t.Errorf("TotalTokens = %d, want %d", loaded.TotalTokens, doc.TotalTokens)
	}
	if loaded.Messages[0].ID != doc.Messages[0].ID {
		t.Errorf("Message ID = %q, want %q", loaded.Messages[0].ID, doc.Messages[0].ID)
	}
	// Timestamps must survive the JSON round trip as real time values.
	if !loaded.Messages[0].Timestamp.Equal(doc.Messages[0].Timestamp) {
		t.Errorf("Timestamp = %v, want %v", loaded.Messages[0].Timestamp, doc.Messages[0].Timestamp)
	}
	if loaded.Context == nil || loaded.Context.Location != model.DefaultLocation {
		t.Error("session context not restored")
	}
}

func TestSQLiteBackend_LoadNotFound(t *testing.T) {
	backend, err := NewSQLiteBackend(filepath.Join(t.TempDir(), DatabaseFile))
	if err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	defer backend.Close()

	_, err = backend.Load(context.Background())
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}
}

func TestSQLiteBackend_Clear(t *testing.T) {
	backend, err := NewSQLiteBackend(filepath.Join(t.TempDir(), DatabaseFile))
	if err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	defer backend.Close()

	ctx := context.Background()
	if err := backend.Save(ctx, testDocument()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := backend.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	_, err = backend.Load(ctx)
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Error("document should not exist after clear")
	}

	// Clearing an already-empty store is not an error.
	if err := backend.Clear(ctx); err != nil {
		t.Errorf("Clear on empty store failed: %v", err)
	}
}

func TestSQLiteBackend_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), DatabaseFile)
	ctx := context.Background()

	backend, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	doc := testDocument()
	if err := backend.Save(ctx, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	backend.Close()

	// Reopening an existing database must not disturb stored data.
	reopened, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load after reopen failed: %v", err)
	}
	if len(loaded.Messages) != len(doc.Messages) {
		t.Errorf("message count after reopen = %d, want %d", len(loaded.Messages), len(doc.Messages))
	}
}

func TestSQLiteBackend_SelfTest(t *testing.T) {
	backend, err := NewSQLiteBackend(filepath.Join(t.TempDir(), DatabaseFile))
	if err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}

	ctx := context.Background()
	if !backend.SelfTest(ctx) {
		t.Error("SelfTest should pass on a healthy backend")
	}

	// A probe record must not linger as a document.
	if _, err := backend.Load(ctx); !errors.Is(err, ErrDocumentNotFound) {
		t.Error("self-test probe leaked into the document row")
	}

	// A closed backend rejects writes; SelfTest reports false, never panics.
	backend.Close()
	if backend.SelfTest(ctx) {
		t.Error("SelfTest should fail on a closed backend")
	}
}

// =============================================================================
// FILE BACKEND TESTS
// =============================================================================

func TestFileBackend_SaveAndLoad(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}

	ctx := context.Background()
	doc := testDocument()

	if err := backend.Save(ctx, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(loaded.Messages) != 2 {
		t.Fatalf("Loaded message count = %d, want 2", len(loaded.Messages))
	}
	if !loaded.Messages[1].Timestamp.Equal(doc.Messages[1].Timestamp) {
		t.Errorf("Timestamp = %v, want %v", loaded.Messages[1].Timestamp, doc.Messages[1].Timestamp)
	}
	if !loaded.LastUpdated.Equal(doc.LastUpdated) {
		t.Errorf("LastUpdated = %v, want %v", loaded.LastUpdated, doc.LastUpdated)
	}
}

func TestFileBackend_LoadNotFound(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}

	_, err = backend.Load(context.Background())
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}
}

func TestFileBackend_Clear(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}

	ctx := context.Background()
	if err := backend.Save(ctx, testDocument()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := backend.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := backend.Load(ctx); !errors.Is(err, ErrDocumentNotFound) {
		t.Error("document should not exist after clear")
	}
	if err := backend.Clear(ctx); err != nil {
		t.Errorf("Clear on empty store failed: %v", err)
	}
}

func TestFileBackend_SelfTest(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}

	ctx := context.Background()
	if !backend.SelfTest(ctx) {
		t.Error("SelfTest should pass on a healthy backend")
	}

	// No probe file left behind, and the document file was never created.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected empty dir after self-test, found %d entries", len(entries))
	}
}

func TestFileBackend_SelfTestFailure(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "store")

	backend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}

	// Replace the data directory with a plain file so writes are rejected.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if err := os.WriteFile(dir, []byte("not a directory"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if backend.SelfTest(context.Background()) {
		t.Error("SelfTest should fail when the backend rejects the write")
	}
}

func TestFileBackend_SaveCancelled(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := backend.Save(ctx, testDocument()); err == nil {
		t.Error("Save with cancelled context should fail")
	}
}

// =============================================================================
// BACKEND SELECTION TESTS
// =============================================================================

func TestOpen_PrefersSQLite(t *testing.T) {
	backend, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer backend.Close()

	if backend.Name() != "sqlite" {
		t.Errorf("backend = %q, want sqlite", backend.Name())
	}
}

func TestOpen_FallsBackToFile(t *testing.T) {
	dir := t.TempDir()

	// Occupy the database path with a directory so the SQLite probe fails.
	if err := os.MkdirAll(filepath.Join(dir, DatabaseFile), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	backend, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer backend.Close()

	if backend.Name() != "file" {
		t.Errorf("backend = %q, want file", backend.Name())
	}

	// The fallback is fully functional.
	ctx := context.Background()
	if err := backend.Save(ctx, testDocument()); err != nil {
		t.Fatalf("Save on fallback failed: %v", err)
	}
	loaded, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("Load on fallback failed: %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Errorf("message count = %d, want 2", len(loaded.Messages))
	}
}

func TestBackends_Interchangeable(t *testing.T) {
	// Both backends satisfy the same contract for the same document.
	backends := map[string]Backend{}

	sqlite, err := NewSQLiteBackend(filepath.Join(t.TempDir(), DatabaseFile))
	if err != nil {
		t.Fatalf("sqlite open failed: %v", err)
	}
	backends["sqlite"] = sqlite

	file, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("file open failed: %v", err)
	}
	backends["file"] = file

	now := time.Now()
	for name, backend := range backends {
		t.Run(name, func(t *testing.T) {
			defer backend.Close()
			ctx := context.Background()

			doc := testDocument()
			doc.Context.SetLocation("Somewhere", model.Coordinates{Lat: 1, Lng: 2}, now)

			if err := backend.Save(ctx, doc); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			loaded, err := backend.Load(ctx)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.Context.Location != "Somewhere" {
				t.Errorf("Location = %q", loaded.Context.Location)
			}
			if loaded.Context.LastLocationUpdate == nil || !loaded.Context.LastLocationUpdate.Equal(now) {
				t.Error("LastLocationUpdate lost in round trip")
			}
			if loaded.TotalTokens != loaded.SumTokens() {
				t.Errorf("TotalTokens = %d, SumTokens = %d", loaded.TotalTokens, loaded.SumTokens())
			}
		})
	}
}
