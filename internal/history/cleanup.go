// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history is the business-logic layer over the persistence backends.
package history

import (
	"context"
	"time"

	"github.com/jeranaias/contextvault/internal/model"
)

// =============================================================================
// CLEANUP
// =============================================================================

// CleanupOptions selects which eviction stages run. Zero values disable a
// stage.
type CleanupOptions struct {
	// MaxMessages keeps at most this many messages (oldest dropped first).
	MaxMessages int

	// MaxTokens keeps the aggregate token count at or below this value
	// (oldest dropped first).
	MaxTokens int

	// MaxAgeDays drops every message older than now minus this many days.
	MaxAgeDays int
}

// CleanupResult reports what a cleanup pass removed.
type CleanupResult struct {
	MessagesRemoved int
	TokensRemoved   int
}

// Cleanup applies eviction stages in a fixed order: age first, then count,
// then token budget. Each stage only removes from the front (oldest first)
// and never reorders; later stages see the result of earlier ones.
func (s *Store) Cleanup(ctx context.Context, opts CleanupOptions) (CleanupResult, error) {
	var result CleanupResult

	err := s.Mutate(ctx, func(doc *model.ConversationDocument) (bool, error) {
		before := len(doc.Messages)
		tokensBefore := doc.SumTokens()

		if opts.MaxAgeDays > 0 {
			cutoff := time.Now().AddDate(0, 0, -opts.MaxAgeDays)
			doc.Messages = dropOlderThan(doc.Messages, cutoff)
		}

		if opts.MaxMessages > 0 {
			for len(doc.Messages) > opts.MaxMessages {
				doc.Messages = doc.Messages[1:]
			}
		}

		if opts.MaxTokens > 0 {
			total := sumTokens(doc.Messages)
			for total > opts.MaxTokens && len(doc.Messages) > 0 {
				total -= doc.Messages[0].TokenCount
				doc.Messages = doc.Messages[1:]
			}
		}

		result.MessagesRemoved = before - len(doc.Messages)
		result.TokensRemoved = tokensBefore - sumTokens(doc.Messages)
		return result.MessagesRemoved > 0, nil
	})

	return result, err
}

// dropOlderThan removes every message with a timestamp before the cutoff,
// preserving the order of the remainder.
func dropOlderThan(messages []*model.Message, cutoff time.Time) []*model.Message {
	kept := messages[:0]
	for _, msg := range messages {
		if !msg.Timestamp.Before(cutoff) {
			kept = append(kept, msg)
		}
	}
	return kept
}

// sumTokens totals the token counts of a message slice.
func sumTokens(messages []*model.Message) int {
	total := 0
	for _, msg := range messages {
		total += msg.TokenCount
	}
	return total
}
