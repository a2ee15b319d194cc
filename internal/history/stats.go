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
// STATS
// =============================================================================

// MessageStats aggregates counts over the stored history. All fields are
// zero (and the timestamps nil) when no messages exist.
type MessageStats struct {
	TotalMessages      int
	UserMessages       int
	AssistantMessages  int
	SummarizedMessages int

	TotalTokens         int
	AverageTokensPerMsg float64

	OldestTimestamp *time.Time
	NewestTimestamp *time.Time
}

// Stats computes aggregate statistics over the stored history.
func (s *Store) Stats(ctx context.Context) (*MessageStats, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}

	stats := &MessageStats{}
	for _, msg := range doc.Messages {
		stats.TotalMessages++
		stats.TotalTokens += msg.TokenCount

		switch msg.Role {
		case model.RoleUser:
			stats.UserMessages++
		case model.RoleAssistant:
			stats.AssistantMessages++
		}
		if msg.IsSummarized {
			stats.SummarizedMessages++
		}

		ts := msg.Timestamp
		if stats.OldestTimestamp == nil || ts.Before(*stats.OldestTimestamp) {
			oldest := ts
			stats.OldestTimestamp = &oldest
		}
		if stats.NewestTimestamp == nil || ts.After(*stats.NewestTimestamp) {
			newest := ts
			stats.NewestTimestamp = &newest
		}
	}

	if stats.TotalMessages > 0 {
		stats.AverageTokensPerMsg = float64(stats.TotalTokens) / float64(stats.TotalMessages)
	}

	return stats, nil
}
