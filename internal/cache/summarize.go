// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/contextvault/internal/model"
)

// SummaryMarker joins the head and tail extracts of a summarized message.
const SummaryMarker = "... [summarized] ..."

// TruncationMarker is appended when an oversized message is hard-truncated.
const TruncationMarker = "... [truncated]"

// ============================================================================
// SUMMARIZATION
// ============================================================================

// Summarize reduces content to at most maxLen characters of extract plus
// the joining marker. The rule is deterministic: keep the first maxLen/2
// characters trimmed back to the last sentence boundary, keep the last
// maxLen/2 characters trimmed forward past the first boundary, and join
// the two with SummaryMarker.
//
// Content at or under maxLen is returned unchanged.
func Summarize(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	half := maxLen / 2

	head := content[:runeStartBefore(content, half)]
	if idx := strings.LastIndex(head, "."); idx > 0 {
		head = head[:idx+1]
	}

	tail := content[runeStartAfter(content, len(content)-half):]
	if idx := strings.Index(tail, "."); idx >= 0 && idx+1 < len(tail) {
		tail = strings.TrimLeft(tail[idx+1:], " \n\t")
	}

	return head + SummaryMarker + tail
}

// runeStartBefore moves a byte offset backward to the nearest rune boundary,
// so slicing at it never splits a multi-byte rune.
func runeStartBefore(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeStartAfter moves a byte offset forward to the nearest rune boundary.
func runeStartAfter(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// Truncate hard-caps content at maxTokens worth of characters and appends
// TruncationMarker. Used for oversized messages that were not summarized.
func Truncate(content string, maxTokens int) string {
	limit := maxTokens * 4
	if len(content) <= limit {
		return content
	}
	return content[:runeStartBefore(content, limit)] + TruncationMarker
}

// ============================================================================
// RETROACTIVE SUMMARIZATION
// ============================================================================

// SummarizeResult reports what SummarizeExisting changed.
type SummarizeResult struct {
	MessagesSummarized int `json:"messages_summarized"`
	TokensSaved        int `json:"tokens_saved"`
}

// SummarizeExisting walks the stored history and summarizes every message
// whose content exceeds the current threshold and has not been summarized
// yet. The whole pass persists as a single write.
func (c *Cache) SummarizeExisting(ctx context.Context) (SummarizeResult, error) {
	c.mu.Lock()
	threshold := c.threshold
	maxLen := c.summaryMaxLen
	c.mu.Unlock()

	var res SummarizeResult
	err := c.store.Mutate(ctx, func(doc *model.ConversationDocument) (bool, error) {
		for _, msg := range doc.Messages {
			if msg.IsSummarized || len(msg.Content) <= threshold {
				continue
			}
			before := msg.TokenCount
			msg.Content = Summarize(msg.Content, maxLen)
			msg.Summary = msg.Content
			msg.IsSummarized = true
			msg.RecomputeTokens()
			res.MessagesSummarized++
			res.TokensSaved += before - msg.TokenCount
		}
		return res.MessagesSummarized > 0, nil
	})
	if err != nil {
		return SummarizeResult{}, err
	}
	return res, nil
}
