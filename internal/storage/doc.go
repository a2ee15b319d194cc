// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the persistence backends for the conversation
// document.
//
// Two backends implement the same Backend interface: a SQLite store
// (preferred) and a flat JSON file (fallback). Open probes SQLite once at
// construction and falls back to the file store if the probe fails; the
// choice is fixed for the process lifetime.
//
// # Key Types
//
//   - Backend: save/load/clear/self-test of the single conversation document
//   - SQLiteBackend: schema-versioned embedded store (modernc.org/sqlite)
//   - FileBackend: single JSON file with atomic writes
//
// # Usage
//
// Open a backend and round-trip the document:
//
//	backend, err := storage.Open(dataDir)
//	if err != nil { ... }
//	defer backend.Close()
//
//	err = backend.Save(ctx, doc)
//	doc, err = backend.Load(ctx)
//
// Check backend health:
//
//	if !backend.SelfTest(ctx) {
//	    // storage is degraded
//	}
package storage
