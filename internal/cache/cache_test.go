// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jeranaias/contextvault/internal/geo"
	"github.com/jeranaias/contextvault/internal/history"
	"github.com/jeranaias/contextvault/internal/model"
	"github.com/jeranaias/contextvault/internal/storage"
)

func newTestCache(t *testing.T, cfg *Config) *Cache {
	t.Helper()
	backend, err := storage.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return New(context.Background(), history.NewStore(backend), cfg)
}

// ============================================================================
// SUMMARIZATION
// ============================================================================

func TestSummarizeShortContentUnchanged(t *testing.T) {
	content := "short message."
	if got := Summarize(content, 500); got != content {
		t.Errorf("Summarize changed content under the limit: %q", got)
	}
}

func TestSummarizeDeterministic(t *testing.T) {
	content := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 70)
	a := Summarize(content, 500)
	b := Summarize(content, 500)
	if a != b {
		t.Error("Summarize is not deterministic")
	}
}

func TestSummarizeBoundsAndMarker(t *testing.T) {
	// A 3000-char message with sentence boundaries throughout.
	content := strings.Repeat("Sentence number one goes here. ", 100)[:3000]
	got := Summarize(content, 500)

	if len(got) > 250+len(SummaryMarker)+250 {
		t.Errorf("summary too long: %d chars", len(got))
	}
	if !strings.Contains(got, SummaryMarker) {
		t.Errorf("summary missing marker: %q", got)
	}
	if !strings.HasPrefix(content, got[:strings.Index(got, SummaryMarker)]) {
		t.Error("summary head is not a prefix extract of the content")
	}
}

func TestSummarizeNoSentenceBoundary(t *testing.T) {
	content := strings.Repeat("x", 3000)
	got := Summarize(content, 500)
	want := strings.Repeat("x", 250) + SummaryMarker + strings.Repeat("x", 250)
	if got != want {
		t.Errorf("boundary-free summary mismatch: got %d chars", len(got))
	}
}

func TestSummarizeMultiByteContent(t *testing.T) {
	// Each euro sign is 3 bytes, so the half-way cut points land mid-rune.
	content := strings.Repeat("€", 1000)
	got := Summarize(content, 500)

	if !utf8.ValidString(got) {
		t.Error("summary is not valid UTF-8")
	}
	if len(got) > 250+len(SummaryMarker)+250 {
		t.Errorf("summary too long: %d bytes", len(got))
	}
	if got != Summarize(content, 500) {
		t.Error("multi-byte summary is not deterministic")
	}
}

func TestTruncateMultiByteContent(t *testing.T) {
	content := strings.Repeat("日本語のテキスト", 200)
	got := Truncate(content, 100)

	if !utf8.ValidString(got) {
		t.Error("truncated content is not valid UTF-8")
	}
	if len(got) > 400+len(TruncationMarker) {
		t.Errorf("truncated content too long: %d bytes", len(got))
	}
	if !strings.HasSuffix(got, TruncationMarker) {
		t.Error("truncation marker missing")
	}
}

func TestMultiByteTokenCountSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	backend, err := storage.NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	ctx := context.Background()
	cc := New(ctx, history.NewStore(backend), nil)

	msg, err := cc.AddMessage(ctx, model.RoleUser, strings.Repeat("€", 1000))
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if !utf8.ValidString(msg.Content) {
		t.Fatal("stored content is not valid UTF-8")
	}
	backend.Close()

	backend2, err := storage.NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend reopen: %v", err)
	}
	defer backend2.Close()

	msgs, err := history.NewStore(backend2).AllMessages(ctx)
	if err != nil {
		t.Fatalf("AllMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("message count = %d, want 1", len(msgs))
	}
	if msgs[0].Content != msg.Content {
		t.Error("content changed across save and reload")
	}
	if got := model.EstimateTokens(msgs[0].Content); got != msgs[0].TokenCount {
		t.Errorf("EstimateTokens(content) = %d, TokenCount = %d", got, msgs[0].TokenCount)
	}
}

func TestAddMessageSummarizesOversized(t *testing.T) {
	cc := newTestCache(t, nil)
	ctx := context.Background()

	content := strings.Repeat("A long sentence about nothing in particular. ", 80)
	if len(content) <= DefaultSummarizationThreshold {
		t.Fatal("test content not over threshold")
	}
	msg, err := cc.AddMessage(ctx, model.RoleUser, content)
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if !msg.IsSummarized {
		t.Error("oversized message not summarized")
	}
	if msg.Summary != msg.Content {
		t.Error("Summary and Content differ after summarization")
	}
	if msg.TokenCount != model.EstimateTokens(msg.Content) {
		t.Error("TokenCount not recomputed from summarized content")
	}
}

func TestAddMessageTruncatesWithoutSummarizing(t *testing.T) {
	// Over the per-message token cap but under the summarization threshold:
	// truncation applies, summarization does not.
	cfg := DefaultConfig()
	cfg.SummarizationThreshold = 100000
	cfg.MaxMessageTokens = 100
	cc := newTestCache(t, cfg)

	content := strings.Repeat("y", 1000) // 250 tokens
	msg, err := cc.AddMessage(context.Background(), model.RoleUser, content)
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if msg.IsSummarized {
		t.Error("truncated message wrongly flagged as summarized")
	}
	if !strings.HasSuffix(msg.Content, TruncationMarker) {
		t.Error("truncated message missing marker")
	}
	if wantPrefix := strings.Repeat("y", 400); !strings.HasPrefix(msg.Content, wantPrefix) {
		t.Error("truncation did not keep maxTokens*4 chars")
	}
}

func TestAddMessageSummarizationWinsOverTruncation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SummarizationThreshold = 200
	cfg.MaxMessageTokens = 10
	cc := newTestCache(t, cfg)

	content := strings.Repeat("Both limits exceeded here. ", 40)
	msg, err := cc.AddMessage(context.Background(), model.RoleUser, content)
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if !msg.IsSummarized {
		t.Error("expected summarization to apply")
	}
	if strings.Contains(msg.Content, TruncationMarker) {
		t.Error("summarized message must not also be truncated")
	}
}

func TestAddMessageRejectsInvalidRole(t *testing.T) {
	cc := newTestCache(t, nil)
	if _, err := cc.AddMessage(context.Background(), model.Role("system"), "x"); err == nil {
		t.Error("expected error for invalid role")
	}
}

func TestSummarizeExisting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SummarizationThreshold = 100000 // store long messages verbatim first
	cc := newTestCache(t, cfg)
	ctx := context.Background()

	long := strings.Repeat("A fairly long sentence for the archive. ", 80)
	if _, err := cc.AddMessage(ctx, model.RoleUser, long); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if _, err := cc.AddMessage(ctx, model.RoleAssistant, "short reply."); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	if err := cc.UpdateSummarization(2000, 500); err != nil {
		t.Fatalf("UpdateSummarization: %v", err)
	}
	res, err := cc.SummarizeExisting(ctx)
	if err != nil {
		t.Fatalf("SummarizeExisting: %v", err)
	}
	if res.MessagesSummarized != 1 {
		t.Errorf("MessagesSummarized = %d, want 1", res.MessagesSummarized)
	}
	if res.TokensSaved <= 0 {
		t.Errorf("TokensSaved = %d, want positive", res.TokensSaved)
	}

	// Second pass is a no-op: already-summarized messages are skipped.
	res, err = cc.SummarizeExisting(ctx)
	if err != nil {
		t.Fatalf("SummarizeExisting second pass: %v", err)
	}
	if res.MessagesSummarized != 0 {
		t.Errorf("second pass summarized %d messages", res.MessagesSummarized)
	}
}

// ============================================================================
// TOKEN BUDGET WINDOW
// ============================================================================

func TestConversationMessagesBudgetWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTokens = 100
	cfg.ReserveTokens = 10
	cc := newTestCache(t, cfg)
	ctx := context.Background()

	// Token counts 80, 15, 5 (chars = tokens*4, minus rounding slack).
	for _, n := range []int{80, 15, 5} {
		if _, err := cc.AddMessage(ctx, model.RoleUser, strings.Repeat("z", n*4)); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	window, err := cc.ConversationMessages(ctx)
	if err != nil {
		t.Fatalf("ConversationMessages: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("window length = %d, want 2", len(window))
	}
	if window[0].TokenCount != 15 || window[1].TokenCount != 5 {
		t.Errorf("window = [%d, %d] tokens, want [15, 5]",
			window[0].TokenCount, window[1].TokenCount)
	}
}

func TestConversationMessagesContiguousSuffix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTokens = 50
	cfg.ReserveTokens = 0
	cc := newTestCache(t, cfg)
	ctx := context.Background()

	// 10, 60, 10, 10: the 60-token message blocks the walk even though
	// the oldest 10 would fit on its own.
	for _, n := range []int{10, 60, 10, 10} {
		if _, err := cc.AddMessage(ctx, model.RoleUser, strings.Repeat("z", n*4)); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	window, err := cc.ConversationMessages(ctx)
	if err != nil {
		t.Fatalf("ConversationMessages: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("window length = %d, want 2", len(window))
	}
	for _, m := range window {
		if m.TokenCount != 10 {
			t.Errorf("unexpected message in window: %d tokens", m.TokenCount)
		}
	}
}

func TestConversationMessagesEmpty(t *testing.T) {
	cc := newTestCache(t, nil)
	window, err := cc.ConversationMessages(context.Background())
	if err != nil {
		t.Fatalf("ConversationMessages: %v", err)
	}
	if len(window) != 0 {
		t.Errorf("window length = %d, want 0", len(window))
	}
}

func TestTokenUsage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTokens = 1000
	cfg.ReserveTokens = 100
	cc := newTestCache(t, cfg)
	ctx := context.Background()

	if _, err := cc.AddMessage(ctx, model.RoleUser, strings.Repeat("z", 400)); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	u, err := cc.TokenUsage(ctx)
	if err != nil {
		t.Fatalf("TokenUsage: %v", err)
	}
	if u.UsedTokens != 100 {
		t.Errorf("UsedTokens = %d, want 100", u.UsedTokens)
	}
	if u.Available != 800 {
		t.Errorf("Available = %d, want 800", u.Available)
	}
	if u.Percent != 10 {
		t.Errorf("Percent = %v, want 10", u.Percent)
	}
}

// ============================================================================
// CLEANUP
// ============================================================================

func TestCleanupDropsOldestOverBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTokens = 100
	cfg.ReserveTokens = 20
	cc := newTestCache(t, cfg)
	ctx := context.Background()

	// 50 + 50 + 50 = 150 tokens against a budget of 80.
	for i := 0; i < 3; i++ {
		if _, err := cc.AddMessage(ctx, model.RoleUser, strings.Repeat("z", 200)); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	res, err := cc.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if res.MessagesRemoved != 2 {
		t.Errorf("MessagesRemoved = %d, want 2", res.MessagesRemoved)
	}
	if res.TokensRemoved != 100 {
		t.Errorf("TokensRemoved = %d, want 100", res.TokensRemoved)
	}

	remaining, err := cc.ConversationMessages(ctx)
	if err != nil {
		t.Fatalf("ConversationMessages: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("remaining = %d messages, want 1", len(remaining))
	}
}

func TestCleanupTrimsToConversationLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConversationLength = 3
	cc := newTestCache(t, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := cc.AddMessage(ctx, model.RoleUser, "hello there"); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}
	res, err := cc.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if res.MessagesRemoved != 2 {
		t.Errorf("MessagesRemoved = %d, want 2", res.MessagesRemoved)
	}
}

func TestCleanupNoopUnderBudget(t *testing.T) {
	cc := newTestCache(t, nil)
	ctx := context.Background()
	if _, err := cc.AddMessage(ctx, model.RoleUser, "tiny"); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	res, err := cc.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if res.MessagesRemoved != 0 || res.TokensRemoved != 0 {
		t.Errorf("unexpected cleanup on under-budget history: %+v", res)
	}
}

// ============================================================================
// SESSION CONTEXT
// ============================================================================

func TestSessionContextDefaults(t *testing.T) {
	cc := newTestCache(t, nil)
	s := cc.SessionContext()
	if s.CurrentDate == "" || s.CurrentTime == "" {
		t.Error("clock fields empty on fresh context")
	}
	if s.Location != model.DefaultLocation {
		t.Errorf("Location = %q, want %q", s.Location, model.DefaultLocation)
	}
}

func TestRefreshLocationUpdatesContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Locator = &geo.FixedLocator{Lat: 51.5074, Lng: -0.1278}
	cc := newTestCache(t, cfg)

	var notified bool
	cc.SetOnContextChange(func(model.SessionContext) { notified = true })

	if err := cc.RefreshLocation(context.Background()); err != nil {
		t.Fatalf("RefreshLocation: %v", err)
	}
	s := cc.SessionContext()
	if s.Location != "51.5074, -0.1278" {
		t.Errorf("Location = %q, want coordinate string", s.Location)
	}
	if s.Coordinates == nil || s.LastLocationUpdate == nil {
		t.Error("coordinates or update time not recorded")
	}
	if !notified {
		t.Error("context change callback not fired")
	}
}

func TestRefreshLocationFailureKeepsPrevious(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Locator = &geo.FixedLocator{Lat: 1, Lng: 2}
	cc := newTestCache(t, cfg)
	ctx := context.Background()

	if err := cc.RefreshLocation(ctx); err != nil {
		t.Fatalf("RefreshLocation: %v", err)
	}
	before := cc.SessionContext().Location

	cc.locator = &geo.FixedLocator{Err: context.DeadlineExceeded}
	if err := cc.RefreshLocation(ctx); err == nil {
		t.Error("expected error from failing locator")
	}
	if got := cc.SessionContext().Location; got != before {
		t.Errorf("Location changed on failure: %q -> %q", before, got)
	}
}

func TestRefreshLocationNoLocator(t *testing.T) {
	cc := newTestCache(t, nil)
	if err := cc.RefreshLocation(context.Background()); err != nil {
		t.Errorf("RefreshLocation without locator: %v", err)
	}
}

func TestSessionContextSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	backend, err := storage.NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	ctx := context.Background()

	cc := New(ctx, history.NewStore(backend), &Config{
		Locator: &geo.FixedLocator{Lat: 35.6762, Lng: 139.6503},
	})
	if err := cc.RefreshLocation(ctx); err != nil {
		t.Fatalf("RefreshLocation: %v", err)
	}
	backend.Close()

	backend2, err := storage.NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend reopen: %v", err)
	}
	defer backend2.Close()

	cc2 := New(ctx, history.NewStore(backend2), nil)
	if got := cc2.SessionContext().Location; got != "35.6762, 139.6503" {
		t.Errorf("Location after reload = %q", got)
	}
}

func TestContextBlockFormat(t *testing.T) {
	cc := newTestCache(t, nil)
	block := cc.ContextBlock()
	for _, want := range []string{"Current date: ", "Current time: ", "Location: "} {
		if !strings.Contains(block, want) {
			t.Errorf("context block missing %q:\n%s", want, block)
		}
	}
}

// ============================================================================
// SETTINGS AND RESET
// ============================================================================

func TestUpdateSummarizationValidation(t *testing.T) {
	cc := newTestCache(t, nil)
	if err := cc.UpdateSummarization(0, 500); err == nil {
		t.Error("accepted zero threshold")
	}
	if err := cc.UpdateSummarization(2000, 5); err == nil {
		t.Error("accepted summary length below marker size")
	}
	if err := cc.UpdateSummarization(400, 500); err == nil {
		t.Error("accepted summary length above threshold")
	}
	if err := cc.UpdateSummarization(3000, 600); err != nil {
		t.Errorf("rejected valid settings: %v", err)
	}
	threshold, maxLen := cc.Summarization()
	if threshold != 3000 || maxLen != 600 {
		t.Errorf("settings = (%d, %d), want (3000, 600)", threshold, maxLen)
	}
}

func TestClearAllResetsHistoryAndContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Locator = &geo.FixedLocator{Lat: 1, Lng: 2}
	cc := newTestCache(t, cfg)
	ctx := context.Background()

	if _, err := cc.AddMessage(ctx, model.RoleUser, "hello"); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if err := cc.RefreshLocation(ctx); err != nil {
		t.Fatalf("RefreshLocation: %v", err)
	}
	if err := cc.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}

	window, err := cc.ConversationMessages(ctx)
	if err != nil {
		t.Fatalf("ConversationMessages: %v", err)
	}
	if len(window) != 0 {
		t.Errorf("history not cleared: %d messages", len(window))
	}
	if got := cc.SessionContext().Location; got != model.DefaultLocation {
		t.Errorf("context not reset: Location = %q", got)
	}
}

func TestHistoryPassthroughs(t *testing.T) {
	cc := newTestCache(t, nil)
	ctx := context.Background()

	if _, err := cc.AddMessage(ctx, model.RoleUser, "where is the needle"); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if _, err := cc.AddMessage(ctx, model.RoleAssistant, "nothing relevant here"); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	all, err := cc.AllMessages(ctx)
	if err != nil {
		t.Fatalf("AllMessages: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("AllMessages returned %d messages, want 2", len(all))
	}

	found, err := cc.SearchMessages(ctx, "needle")
	if err != nil {
		t.Fatalf("SearchMessages: %v", err)
	}
	if len(found) != 1 || found[0].Role != model.RoleUser {
		t.Errorf("SearchMessages = %d matches, want the one user message", len(found))
	}

	stats, err := cc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalMessages != 2 {
		t.Errorf("Stats.TotalMessages = %d, want 2", stats.TotalMessages)
	}

	data, err := cc.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := cc.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if err := cc.ImportJSON(ctx, raw); err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	all, err = cc.AllMessages(ctx)
	if err != nil {
		t.Fatalf("AllMessages after import: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("round trip lost messages: %d, want 2", len(all))
	}
}
