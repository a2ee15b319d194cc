// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache implements the conversational context cache: the token
// budget over the stored history, deterministic summarization of oversized
// messages, and the ambient session context (date, time, timezone,
// location) injected into prompts.
//
// The cache is the only entry point for UI collaborators. It delegates all
// durability to the history coordinator and never touches the persistence
// backends directly.
//
// # Key Types
//
//   - Cache: budget enforcement, summarization, session context
//   - Config: budgets and summarization tuning
//   - Usage: current token usage against the budget
//
// # Usage
//
//	store := history.NewStore(backend)
//	cc := cache.New(ctx, store, nil)
//
//	msg, err := cc.AddMessage(ctx, model.RoleUser, "hello")
//	window, err := cc.ConversationMessages(ctx)
//
// The window returned by ConversationMessages is always a contiguous
// oldest-first suffix of the stored history that fits the token budget.
package cache
