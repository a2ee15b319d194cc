// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the conversation cache.
package model

import (
	"time"
)

// =============================================================================
// CONVERSATION DOCUMENT TYPE
// =============================================================================

// ConversationDocument is the single persisted aggregate: the full message
// history, the session context, and the aggregate token count.
//
// Invariant: TotalTokens equals the sum of TokenCount over Messages whenever
// the document is persisted. During a batch edit it may drift; callers must
// call ReconcileTokens before saving.
type ConversationDocument struct {
	// Messages in insertion order, oldest first.
	Messages []*Message `json:"messages"`

	// Context is the ambient session metadata.
	Context *SessionContext `json:"context"`

	// TotalTokens is the aggregate token count over Messages.
	TotalTokens int `json:"total_tokens"`

	// LastUpdated is the timestamp of the last write.
	LastUpdated time.Time `json:"last_updated"`
}

// NewConversationDocument creates an empty document with a fresh default
// session context.
func NewConversationDocument() *ConversationDocument {
	return &ConversationDocument{
		Messages:    make([]*Message, 0),
		Context:     NewSessionContext(),
		LastUpdated: time.Now(),
	}
}

// =============================================================================
// DOCUMENT METHODS
// =============================================================================

// Append adds a message and updates the aggregate token count.
func (d *ConversationDocument) Append(msg *Message) {
	d.Messages = append(d.Messages, msg)
	d.TotalTokens += msg.TokenCount
	d.LastUpdated = time.Now()
}

// SumTokens computes the token total directly from the messages.
func (d *ConversationDocument) SumTokens() int {
	total := 0
	for _, msg := range d.Messages {
		total += msg.TokenCount
	}
	return total
}

// ReconcileTokens recomputes TotalTokens from the messages.
func (d *ConversationDocument) ReconcileTokens() {
	d.TotalTokens = d.SumTokens()
}

// MessageCount returns the number of messages.
func (d *ConversationDocument) MessageCount() int {
	return len(d.Messages)
}

// IsEmpty returns true if there are no messages.
func (d *ConversationDocument) IsEmpty() bool {
	return len(d.Messages) == 0
}

// Clone creates a deep copy of the document.
func (d *ConversationDocument) Clone() *ConversationDocument {
	clone := &ConversationDocument{
		Messages:    make([]*Message, len(d.Messages)),
		TotalTokens: d.TotalTokens,
		LastUpdated: d.LastUpdated,
	}
	for i, msg := range d.Messages {
		clone.Messages[i] = msg.Clone()
	}
	if d.Context != nil {
		clone.Context = d.Context.Clone()
	}
	return clone
}
