// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the conversation cache.
//
// This package defines the core domain types shared by the storage backends,
// the history coordinator, and the context cache.
//
// # Key Types
//
//   - Message: Single conversational turn with role, content, and token count
//   - SessionContext: Ambient metadata (date, time, timezone, location)
//   - ConversationDocument: The single persisted aggregate
//   - Role: Message role enumeration (user, assistant)
//
// # Usage
//
// Create a message and inspect its token estimate:
//
//	msg := model.NewMessage(model.RoleUser, "Hello!")
//	fmt.Println(msg.TokenCount)
//
// Build a fresh document with a default session context:
//
//	doc := model.NewConversationDocument()
package model
