// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jeranaias/contextvault/internal/geo"
	"github.com/jeranaias/contextvault/internal/history"
	"github.com/jeranaias/contextvault/internal/model"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

// Default budgets. MaxTokens matches a 32k context window; ReserveTokens is
// headroom left for the model's reply and the ambient context block.
const (
	DefaultMaxTokens              = 32000
	DefaultReserveTokens          = 4000
	DefaultMaxMessageTokens       = 2000
	DefaultMaxConversationLength  = 200
	DefaultSummarizationThreshold = 2000
	DefaultSummaryMaxLength       = 500
)

// Config holds the cache budgets and summarization tuning.
//
// MaxTokens, ReserveTokens, MaxMessageTokens, and MaxConversationLength are
// fixed for the lifetime of the cache. SummarizationThreshold and
// SummaryMaxLength can be changed at runtime via UpdateSummarization.
type Config struct {
	// MaxTokens is the total token budget for the conversation window.
	MaxTokens int

	// ReserveTokens is headroom subtracted from MaxTokens when selecting
	// the window, left free for the reply and the context block.
	ReserveTokens int

	// MaxMessageTokens caps a single message. Messages over the cap that
	// were not summarized are hard-truncated.
	MaxMessageTokens int

	// MaxConversationLength caps the stored message count during Cleanup.
	MaxConversationLength int

	// SummarizationThreshold is the content length in characters above
	// which a new message is summarized instead of stored verbatim.
	SummarizationThreshold int

	// SummaryMaxLength bounds the generated summary in characters,
	// excluding the joining marker.
	SummaryMaxLength int

	// Locator resolves the device position for RefreshLocation. Optional.
	Locator geo.Locator

	// Geocoder turns coordinates into a place name. Optional.
	Geocoder geo.Geocoder
}

// DefaultConfig returns a Config with the default budgets.
func DefaultConfig() *Config {
	return &Config{
		MaxTokens:              DefaultMaxTokens,
		ReserveTokens:          DefaultReserveTokens,
		MaxMessageTokens:       DefaultMaxMessageTokens,
		MaxConversationLength:  DefaultMaxConversationLength,
		SummarizationThreshold: DefaultSummarizationThreshold,
		SummaryMaxLength:       DefaultSummaryMaxLength,
	}
}

// ============================================================================
// CACHE
// ============================================================================

// Cache enforces the token budget over the stored history and maintains the
// ambient session context. Safe for concurrent use.
type Cache struct {
	store *history.Store

	maxTokens             int
	reserveTokens         int
	maxMessageTokens      int
	maxConversationLength int

	locator  geo.Locator
	geocoder geo.Geocoder

	mu              sync.Mutex
	threshold       int // summarization threshold, chars
	summaryMaxLen   int
	session         *model.SessionContext
	onContextChange func(model.SessionContext)
}

// New builds a Cache over the store. A nil cfg uses DefaultConfig; zero
// budget fields fall back to their defaults.
//
// New never fails: if the persisted session context cannot be loaded, a
// default context is synthesized so the ambient block is always available.
func New(ctx context.Context, store *history.Store, cfg *Config) *Cache {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &Cache{
		store:                 store,
		maxTokens:             cfg.MaxTokens,
		reserveTokens:         cfg.ReserveTokens,
		maxMessageTokens:      cfg.MaxMessageTokens,
		maxConversationLength: cfg.MaxConversationLength,
		threshold:             cfg.SummarizationThreshold,
		summaryMaxLen:         cfg.SummaryMaxLength,
		locator:               cfg.Locator,
		geocoder:              cfg.Geocoder,
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.reserveTokens < 0 {
		c.reserveTokens = DefaultReserveTokens
	}
	if c.maxMessageTokens <= 0 {
		c.maxMessageTokens = DefaultMaxMessageTokens
	}
	if c.maxConversationLength <= 0 {
		c.maxConversationLength = DefaultMaxConversationLength
	}
	if c.threshold <= 0 {
		c.threshold = DefaultSummarizationThreshold
	}
	if c.summaryMaxLen <= 0 {
		c.summaryMaxLen = DefaultSummaryMaxLength
	}

	c.session = c.loadSession(ctx)
	return c
}

// loadSession restores the persisted session context, or synthesizes a
// fresh default one when nothing usable is stored.
func (c *Cache) loadSession(ctx context.Context) *model.SessionContext {
	doc, err := c.store.Document(ctx)
	if err == nil && doc.Context != nil {
		s := doc.Context.Clone()
		s.RefreshClock(time.Now())
		return s
	}
	return model.NewSessionContext()
}

// ============================================================================
// MESSAGES
// ============================================================================

// AddMessage appends a message to the history, summarizing or truncating
// oversized content first. The returned message reflects what was stored.
func (c *Cache) AddMessage(ctx context.Context, role model.Role, content string) (*model.Message, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	c.mu.Lock()
	threshold := c.threshold
	maxLen := c.summaryMaxLen
	c.mu.Unlock()

	msg := model.NewMessage(role, content)
	switch {
	case len(content) > threshold:
		// Summarization wins over truncation; the two never combine.
		msg.Content = Summarize(content, maxLen)
		msg.Summary = msg.Content
		msg.IsSummarized = true
		msg.RecomputeTokens()
	case msg.TokenCount > c.maxMessageTokens:
		msg.Content = Truncate(content, c.maxMessageTokens)
		msg.RecomputeTokens()
	}

	if err := c.store.AddMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ConversationMessages returns the window of history that fits the token
// budget: the longest contiguous oldest-first suffix whose token sum plus
// the reserve stays within MaxTokens.
func (c *Cache) ConversationMessages(ctx context.Context) ([]*model.Message, error) {
	msgs, err := c.store.AllMessages(ctx)
	if err != nil {
		return nil, err
	}

	used := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		if used+msgs[i].TokenCount+c.reserveTokens > c.maxTokens {
			break
		}
		used += msgs[i].TokenCount
		start = i
	}
	return msgs[start:], nil
}

// Usage reports the current token usage against the budget.
type Usage struct {
	UsedTokens    int     `json:"used_tokens"`
	MaxTokens     int     `json:"max_tokens"`
	ReserveTokens int     `json:"reserve_tokens"`
	Available     int     `json:"available"`
	Percent       float64 `json:"percent"`
}

// TokenUsage returns usage over the full stored history, not just the
// current window.
func (c *Cache) TokenUsage(ctx context.Context) (Usage, error) {
	doc, err := c.store.Document(ctx)
	if err != nil {
		return Usage{}, err
	}
	u := Usage{
		UsedTokens:    doc.TotalTokens,
		MaxTokens:     c.maxTokens,
		ReserveTokens: c.reserveTokens,
	}
	u.Available = c.maxTokens - c.reserveTokens - u.UsedTokens
	if u.Available < 0 {
		u.Available = 0
	}
	if c.maxTokens > 0 {
		u.Percent = float64(u.UsedTokens) / float64(c.maxTokens) * 100
	}
	return u, nil
}

// CleanupResult reports what Cleanup removed.
type CleanupResult struct {
	MessagesRemoved int `json:"messages_removed"`
	TokensRemoved   int `json:"tokens_removed"`
}

// Cleanup drops the oldest messages until the history fits within the
// token budget minus the reserve, then trims the count down to
// MaxConversationLength. Newest messages always survive.
func (c *Cache) Cleanup(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult
	budget := c.maxTokens - c.reserveTokens

	err := c.store.Mutate(ctx, func(doc *model.ConversationDocument) (bool, error) {
		total := doc.SumTokens()
		drop := 0
		for total > budget && drop < len(doc.Messages) {
			total -= doc.Messages[drop].TokenCount
			drop++
		}
		if over := len(doc.Messages) - drop - c.maxConversationLength; over > 0 {
			drop += over
		}
		if drop == 0 {
			return false, nil
		}
		for _, m := range doc.Messages[:drop] {
			res.TokensRemoved += m.TokenCount
		}
		res.MessagesRemoved = drop
		doc.Messages = doc.Messages[drop:]
		return true, nil
	})
	if err != nil {
		return CleanupResult{}, err
	}
	return res, nil
}

// ClearAll wipes the stored history and resets the session context to a
// fresh default.
func (c *Cache) ClearAll(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.session = model.NewSessionContext()
	c.mu.Unlock()
	c.notify()
	return nil
}

// ============================================================================
// HISTORY PASSTHROUGHS
// ============================================================================

// Callers work against the cache; the storage coordinator stays an
// implementation detail.

// AllMessages returns the full stored history, oldest first, ignoring the
// token budget.
func (c *Cache) AllMessages(ctx context.Context) ([]*model.Message, error) {
	return c.store.AllMessages(ctx)
}

// SearchMessages returns stored messages matching query, oldest first.
func (c *Cache) SearchMessages(ctx context.Context, query string) ([]*model.Message, error) {
	return c.store.SearchMessages(ctx, query)
}

// Stats reports aggregate counts over the stored history.
func (c *Cache) Stats(ctx context.Context) (*history.MessageStats, error) {
	return c.store.Stats(ctx)
}

// PruneByAge drops messages older than maxAgeDays.
func (c *Cache) PruneByAge(ctx context.Context, maxAgeDays int) (history.CleanupResult, error) {
	return c.store.Cleanup(ctx, history.CleanupOptions{MaxAgeDays: maxAgeDays})
}

// Export snapshots the stored history for serialization.
func (c *Cache) Export(ctx context.Context) (*history.ExportData, error) {
	return c.store.Export(ctx)
}

// ImportJSON replaces the stored history with a previously exported
// document.
func (c *Cache) ImportJSON(ctx context.Context, raw []byte) error {
	return c.store.ImportJSON(ctx, raw)
}

// ============================================================================
// SESSION CONTEXT
// ============================================================================

// SessionContext returns a snapshot of the ambient context with the clock
// fields recomputed for the current moment.
func (c *Cache) SessionContext() model.SessionContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.RefreshClock(time.Now())
	return *c.session.Clone()
}

// ContextBlock renders the ambient context as the text block injected
// ahead of the conversation window.
func (c *Cache) ContextBlock() string {
	s := c.SessionContext()
	return s.FormatBlock()
}

// RefreshLocation resolves the device position and updates the session
// context. On any failure the previous location is kept and the error is
// returned for logging; the context is never left unset.
func (c *Cache) RefreshLocation(ctx context.Context) error {
	if c.locator == nil {
		return nil
	}
	lat, lng, err := c.locator.Locate(ctx)
	if err != nil {
		return fmt.Errorf("locate: %w", err)
	}

	name := ""
	if c.geocoder != nil {
		addr, gerr := c.geocoder.ReverseGeocode(ctx, lat, lng)
		if gerr == nil {
			name = addr.DisplayName()
		}
		// Geocoding failure is non-fatal: coordinates alone still
		// name the location.
	}

	now := time.Now()
	c.mu.Lock()
	c.session.SetLocation(name, model.Coordinates{Lat: lat, Lng: lng}, now)
	snapshot := c.session.Clone()
	c.mu.Unlock()

	if err := c.persistSession(ctx, snapshot); err != nil {
		return err
	}
	c.notify()
	return nil
}

// RefreshClock recomputes the date and time fields, persists the context,
// and fires the change callback.
func (c *Cache) RefreshClock(ctx context.Context) error {
	c.mu.Lock()
	c.session.RefreshClock(time.Now())
	snapshot := c.session.Clone()
	c.mu.Unlock()

	if err := c.persistSession(ctx, snapshot); err != nil {
		return err
	}
	c.notify()
	return nil
}

func (c *Cache) persistSession(ctx context.Context, s *model.SessionContext) error {
	return c.store.Mutate(ctx, func(doc *model.ConversationDocument) (bool, error) {
		doc.Context = s.Clone()
		return true, nil
	})
}

// SetOnContextChange registers a callback fired after the session context
// changes. The callback runs outside the cache lock and must not call back
// into the cache's context methods.
func (c *Cache) SetOnContextChange(fn func(model.SessionContext)) {
	c.mu.Lock()
	c.onContextChange = fn
	c.mu.Unlock()
}

func (c *Cache) notify() {
	c.mu.Lock()
	fn := c.onContextChange
	var snapshot model.SessionContext
	if fn != nil {
		snapshot = *c.session.Clone()
	}
	c.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

// ============================================================================
// SETTINGS
// ============================================================================

// Summarization returns the current summarization threshold and summary
// length bound, both in characters.
func (c *Cache) Summarization() (threshold, maxLen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold, c.summaryMaxLen
}

// UpdateSummarization changes the summarization tuning. Both values must be
// positive; maxLen must leave room for the joining marker and must not
// exceed the threshold, otherwise a summarized message could come out no
// shorter than it went in.
func (c *Cache) UpdateSummarization(threshold, maxLen int) error {
	if threshold <= 0 {
		return fmt.Errorf("summarization threshold must be positive, got %d", threshold)
	}
	if maxLen < len(SummaryMarker) {
		return fmt.Errorf("summary max length must be at least %d, got %d", len(SummaryMarker), maxLen)
	}
	if maxLen > threshold {
		return fmt.Errorf("summary max length %d exceeds threshold %d", maxLen, threshold)
	}
	c.mu.Lock()
	c.threshold = threshold
	c.summaryMaxLen = maxLen
	c.mu.Unlock()
	return nil
}

// MaxTokens returns the total token budget.
func (c *Cache) MaxTokens() int { return c.maxTokens }

// ReserveTokens returns the reserved headroom.
func (c *Cache) ReserveTokens() int { return c.reserveTokens }
