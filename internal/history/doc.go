// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history is the business-logic layer over the persistence
// backends: it owns the conversation document and exposes message-level
// operations on top of whole-document reads and writes.
//
// Every mutating operation is a single load -> mutate -> save sequence
// guarded by an in-process mutex, so two rapid writers cannot clobber
// each other's snapshot.
//
// # Key Types
//
//   - Store: the storage coordinator
//   - CleanupOptions / CleanupResult: bulk eviction by age, count, tokens
//   - ExportData: the export/import envelope
//   - MessageStats: aggregate counts over the history
//
// # Usage
//
//	store := history.NewStore(backend)
//	err := store.AddMessage(ctx, model.NewUserMessage("hello"))
//	msgs, err := store.AllMessages(ctx)
//
// Bulk cleanup:
//
//	res, err := store.Cleanup(ctx, history.CleanupOptions{MaxMessages: 100})
package history
