// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history is the business-logic layer over the persistence backends.
package history

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/contextvault/internal/model"
	"github.com/jeranaias/contextvault/internal/storage"
)

// contentPrefixLen is the number of leading characters used for the legacy
// content-prefix identity fallback in update/delete lookups.
const contentPrefixLen = 50

// =============================================================================
// STORE
// =============================================================================

// Store coordinates all reads and writes of the conversation document.
// It never exposes partial updates: every operation loads the whole
// document, mutates it, and saves it back under a single mutex.
type Store struct {
	mu      sync.Mutex
	backend storage.Backend
}

// NewStore creates a coordinator over the given backend.
func NewStore(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

// Backend returns the underlying persistence backend.
func (s *Store) Backend() storage.Backend {
	return s.backend
}

// =============================================================================
// DOCUMENT ACCESS
// =============================================================================

// load retrieves the current document, or a fresh default one (empty
// history, new session context) when none has been saved yet.
func (s *Store) load(ctx context.Context) (*model.ConversationDocument, error) {
	doc, err := s.backend.Load(ctx)
	if errors.Is(err, storage.ErrDocumentNotFound) {
		return model.NewConversationDocument(), nil
	}
	if err != nil {
		return nil, err
	}
	if doc.Context == nil {
		doc.Context = model.NewSessionContext()
	}
	return doc, nil
}

// Document returns a snapshot of the current document (default when absent).
func (s *Store) Document(ctx context.Context) (*model.ConversationDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Mutate runs fn against the current document under the write lock and
// saves the result when fn reports a change. The aggregate token count is
// reconciled before every save, so the persisted document always satisfies
// TotalTokens == sum of message token counts.
func (s *Store) Mutate(ctx context.Context, fn func(doc *model.ConversationDocument) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}

	changed, err := fn(doc)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	doc.ReconcileTokens()
	doc.LastUpdated = time.Now()
	return s.backend.Save(ctx, doc)
}

// Clear removes the persisted document entirely.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Clear(ctx)
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// AddMessage appends a message to the history and persists the document.
func (s *Store) AddMessage(ctx context.Context, msg *model.Message) error {
	return s.Mutate(ctx, func(doc *model.ConversationDocument) (bool, error) {
		doc.Append(msg)
		return true, nil
	})
}

// AllMessages returns the full message history, oldest first.
// An absent document yields an empty slice.
func (s *Store) AllMessages(ctx context.Context) ([]*model.Message, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Messages, nil
}

// MessagesByRole returns the messages with the given role, oldest first.
func (s *Store) MessagesByRole(ctx context.Context, role model.Role) ([]*model.Message, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Message, 0)
	for _, msg := range doc.Messages {
		if msg.Role == role {
			out = append(out, msg)
		}
	}
	return out, nil
}

// MessagesByDateRange returns the messages whose timestamp falls within
// [start, end], oldest first.
func (s *Store) MessagesByDateRange(ctx context.Context, start, end time.Time) ([]*model.Message, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Message, 0)
	for _, msg := range doc.Messages {
		if msg.Timestamp.Before(start) || msg.Timestamp.After(end) {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// SearchMessages returns messages whose content or summary contains the
// query, case-insensitive.
func (s *Store) SearchMessages(ctx context.Context, query string) ([]*model.Message, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	out := make([]*model.Message, 0)
	for _, msg := range doc.Messages {
		if strings.Contains(strings.ToLower(msg.Content), query) {
			out = append(out, msg)
			continue
		}
		if msg.Summary != "" && strings.Contains(strings.ToLower(msg.Summary), query) {
			out = append(out, msg)
		}
	}
	return out, nil
}

// =============================================================================
// UPDATE / DELETE
// =============================================================================

// MessagePatch describes a partial update of a message. Nil fields are left
// untouched.
type MessagePatch struct {
	Content      *string
	Summary      *string
	IsSummarized *bool
}

// UpdateMessage applies a patch to the message matching the identity and
// reports whether a match was found. The token count is recomputed from the
// patched content.
func (s *Store) UpdateMessage(ctx context.Context, identity string, patch MessagePatch) (bool, error) {
	found := false
	err := s.Mutate(ctx, func(doc *model.ConversationDocument) (bool, error) {
		idx := findMessage(doc, identity)
		if idx < 0 {
			return false, nil
		}
		found = true

		msg := doc.Messages[idx]
		if patch.Content != nil {
			msg.Content = *patch.Content
			msg.RecomputeTokens()
		}
		if patch.Summary != nil {
			msg.Summary = *patch.Summary
		}
		if patch.IsSummarized != nil {
			msg.IsSummarized = *patch.IsSummarized
		}
		return true, nil
	})
	return found, err
}

// DeleteMessage removes the message matching the identity and reports
// whether a match was found.
func (s *Store) DeleteMessage(ctx context.Context, identity string) (bool, error) {
	found := false
	err := s.Mutate(ctx, func(doc *model.ConversationDocument) (bool, error) {
		idx := findMessage(doc, identity)
		if idx < 0 {
			return false, nil
		}
		found = true
		doc.Messages = append(doc.Messages[:idx], doc.Messages[idx+1:]...)
		return true, nil
	})
	return found, err
}

// findMessage locates a message by ID, then by serialized timestamp, then
// by content prefix. The ID path is the reliable one; the other two exist
// for documents written before messages carried IDs.
func findMessage(doc *model.ConversationDocument, identity string) int {
	for i, msg := range doc.Messages {
		if msg.ID != "" && msg.ID == identity {
			return i
		}
	}

	for i, msg := range doc.Messages {
		if msg.Timestamp.Format(time.RFC3339Nano) == identity {
			return i
		}
	}

	prefix := identity
	if runes := []rune(prefix); len(runes) > contentPrefixLen {
		prefix = string(runes[:contentPrefixLen])
	}
	if prefix == "" {
		return -1
	}
	for i, msg := range doc.Messages {
		if strings.HasPrefix(msg.Content, prefix) {
			return i
		}
	}

	return -1
}
