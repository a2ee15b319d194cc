// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the conversation cache.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/contextvault/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single conversational turn.
//
// Content always holds the text actually retained: when a message has been
// summarized or truncated, Content is the shortened form and TokenCount
// reflects that shortened form, never the original text.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content string `json:"content"`

	// Summary is set only when the message was summarized. Once set it is
	// identical to Content; it is kept as a separate field so searches and
	// exports can distinguish summarized text.
	Summary string `json:"summary,omitempty"`

	// Token statistics
	TokenCount int `json:"token_count"`

	// IsSummarized distinguishes shortened messages from full ones.
	IsSummarized bool `json:"is_summarized,omitempty"`
}

// NewMessage creates a new message with a generated ID and the token count
// computed from the content.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:         generateMessageID(),
		Role:       role,
		Content:    content,
		Timestamp:  time.Now(),
		TokenCount: EstimateTokens(content),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) *Message {
	return NewMessage(RoleAssistant, content)
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// RecomputeTokens updates TokenCount from the currently stored content.
// Call this after any mutation of Content.
func (m *Message) RecomputeTokens() {
	m.TokenCount = EstimateTokens(m.Content)
}

// Preview returns a single-line truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(util.SanitizeLine(m.Content), maxLen)
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// Clone returns a copy of the message.
func (m *Message) Clone() *Message {
	cp := *m
	return &cp
}

// =============================================================================
// TOKEN ESTIMATION
// =============================================================================

// EstimateTokens gives a rough estimate of the token count of a string.
// Uses the approximation of ~4 characters per token, rounded up.
func EstimateTokens(content string) int {
	return (len(content) + 3) / 4
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateMessageID creates a unique message ID.
// A real ID (rather than identity reconstructed from timestamp or content)
// keeps update/delete lookups unambiguous even for messages created in the
// same millisecond or sharing a prefix.
func generateMessageID() string {
	return "msg_" + uuid.NewString()
}
