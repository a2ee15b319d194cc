// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the persistence backends for the conversation document.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/contextvault/internal/model"
)

// =============================================================================
// SQLITE BACKEND
// =============================================================================

// SQLiteBackend stores the conversation document in an embedded SQLite
// database. The whole document is one JSON record in the conversations
// table under DocumentRowID; reads and writes each run in their own
// transaction.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// NewSQLiteBackend opens (or creates) the database at the given path and
// ensures the schema is at the current version. Opening is idempotent: an
// up-to-date database is left untouched, and a database behind version
// gains the missing tables and indexes without deleting existing data.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	dbDir := filepath.Dir(path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	b := &SQLiteBackend{db: db, path: path}

	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return b, nil
}

// initSchema creates missing tables and brings the schema version current.
func (b *SQLiteBackend) initSchema() error {
	if _, err := b.db.Exec(Schema); err != nil {
		return err
	}
	if _, err := b.db.Exec(InitMetadata); err != nil {
		return err
	}

	var stored string
	err := b.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&stored)
	if err != nil {
		return err
	}

	version, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("invalid schema version %q: %w", stored, err)
	}

	if version < SchemaVersion {
		// Re-running the schema adds anything the old version lacked;
		// CREATE TABLE IF NOT EXISTS never drops existing data.
		if _, err := b.db.Exec(Schema); err != nil {
			return err
		}
		_, err = b.db.Exec("UPDATE metadata SET value = ? WHERE key = 'schema_version'",
			strconv.Itoa(SchemaVersion))
		if err != nil {
			return err
		}
	}

	return nil
}

// Name identifies the backend kind.
func (b *SQLiteBackend) Name() string {
	return "sqlite"
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// =============================================================================
// DOCUMENT OPERATIONS
// =============================================================================

// Save persists the document as one JSON record in its own transaction.
func (b *SQLiteBackend) Save(ctx context.Context, doc *model.ConversationDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return &StorageError{Message: "failed to encode document", Cause: err}
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Message: "failed to begin transaction", Cause: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at
	`, DocumentRowID, string(data), time.Now().Unix())
	if err != nil {
		return &StorageError{Message: "failed to write document", Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Message: "failed to commit document", Cause: err}
	}
	return nil
}

// Load retrieves the document in its own transaction.
func (b *SQLiteBackend) Load(ctx context.Context) (*model.ConversationDocument, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &StorageError{Message: "failed to begin transaction", Cause: err}
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		"SELECT document FROM conversations WHERE id = ?", DocumentRowID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, &StorageError{Message: "failed to read document", Cause: err}
	}

	var doc model.ConversationDocument
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, &StorageError{Message: "failed to decode document", Cause: err}
	}

	return &doc, nil
}

// Clear removes the persisted document.
func (b *SQLiteBackend) Clear(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx,
		"DELETE FROM conversations WHERE id = ?", DocumentRowID)
	if err != nil {
		return &StorageError{Message: "failed to clear document", Cause: err}
	}
	return nil
}

// SelfTest round-trips a synthetic record through the conversations table.
// The record uses its own row id so a real document is never disturbed.
func (b *SQLiteBackend) SelfTest(ctx context.Context) bool {
	const probeID = "selftest"
	const probeValue = `{"probe":true}`

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO conversations (id, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at
	`, probeID, probeValue, time.Now().Unix())
	if err != nil {
		return false
	}

	var readBack string
	err = b.db.QueryRowContext(ctx,
		"SELECT document FROM conversations WHERE id = ?", probeID).Scan(&readBack)
	if err != nil || readBack != probeValue {
		return false
	}

	_, err = b.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", probeID)
	return err == nil
}
