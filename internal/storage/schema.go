// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the persistence backends for the conversation document.
package storage

const (
	// SchemaVersion tracks the database schema version for migrations.
	// Bump whenever the persisted record shape changes; opening an older
	// database re-runs the schema, which adds missing tables without
	// touching existing data.
	SchemaVersion = 1

	// DocumentRowID is the canonical row id for the single conversation
	// document in the conversations table.
	DocumentRowID = "context"
)

// SQLite schema for the conversation store.
const Schema = `
-- Metadata table for schema version and store state
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Conversations table: the whole document as one JSON record per row.
-- The cache uses a single row keyed by 'context'.
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    document TEXT NOT NULL,
    updated_at INTEGER NOT NULL  -- Unix timestamp
) WITHOUT ROWID;

-- Messages table: reserved for per-message normalization. Created so a
-- future schema version can migrate rows into it; no caller writes to it
-- at schema version 1.
CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    token_count INTEGER NOT NULL,
    is_summarized INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
`

// InitMetadata initializes the metadata table with default values.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
`
