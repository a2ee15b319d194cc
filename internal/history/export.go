// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history is the business-logic layer over the persistence backends.
package history

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jeranaias/contextvault/internal/model"
)

// ExportVersion identifies the export envelope format.
const ExportVersion = "1.0"

// ErrInvalidImport is returned when import data fails validation.
// The existing document is left untouched in that case.
var ErrInvalidImport = &ImportError{Message: "invalid import data"}

// ImportError describes why an import was rejected.
type ImportError struct {
	Message string
}

func (e *ImportError) Error() string {
	return e.Message
}

// Is implements errors.Is support so callers can match any ImportError
// against ErrInvalidImport.
func (e *ImportError) Is(target error) bool {
	_, ok := target.(*ImportError)
	return ok
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportMetadata describes an export envelope.
type ExportMetadata struct {
	ExportDate    time.Time `json:"export_date"`
	TotalMessages int       `json:"total_messages"`
	TotalTokens   int       `json:"total_tokens"`
	Version       string    `json:"version"`
}

// ExportData is the whole-conversation export/import envelope.
type ExportData struct {
	Messages []*model.Message      `json:"messages"`
	Context  *model.SessionContext `json:"context"`
	Metadata ExportMetadata        `json:"metadata"`
}

// Export returns the full conversation as an export envelope. It fails
// with the backend's not-found error when no document has been saved.
func (s *Store) Export(ctx context.Context) (*ExportData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Load(ctx)
	if err != nil {
		return nil, err
	}

	return &ExportData{
		Messages: doc.Messages,
		Context:  doc.Context,
		Metadata: ExportMetadata{
			ExportDate:    time.Now(),
			TotalMessages: len(doc.Messages),
			TotalTokens:   doc.SumTokens(),
			Version:       ExportVersion,
		},
	}, nil
}

// =============================================================================
// IMPORT
// =============================================================================

// Import validates the envelope and replaces the stored document with its
// contents. Validation failures reject the import before any mutation.
// Message timestamps and IDs are re-hydrated where missing, and the token
// totals are recomputed from scratch; an incoming total is never trusted.
func (s *Store) Import(ctx context.Context, data *ExportData) error {
	if data == nil {
		return &ImportError{Message: "import data is empty"}
	}
	if data.Messages == nil {
		return &ImportError{Message: "import data has no message sequence"}
	}
	if data.Context == nil {
		return &ImportError{Message: "import data has no session context"}
	}
	for i, msg := range data.Messages {
		if msg == nil {
			return &ImportError{Message: "import data contains a null message"}
		}
		if !msg.Role.IsValid() {
			return &ImportError{Message: "import message " + strconv.Itoa(i) + " has unknown role \"" + string(msg.Role) + "\""}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := &model.ConversationDocument{
		Messages:    make([]*model.Message, len(data.Messages)),
		Context:     data.Context.Clone(),
		LastUpdated: time.Now(),
	}

	now := time.Now()
	for i, msg := range data.Messages {
		restored := msg.Clone()
		if restored.Timestamp.IsZero() {
			restored.Timestamp = now
		}
		if restored.ID == "" {
			fresh := model.NewMessage(restored.Role, restored.Content)
			restored.ID = fresh.ID
		}
		if restored.TokenCount <= 0 {
			restored.RecomputeTokens()
		}
		doc.Messages[i] = restored
	}
	doc.ReconcileTokens()

	return s.backend.Save(ctx, doc)
}

// ImportJSON decodes a JSON export envelope and imports it.
func (s *Store) ImportJSON(ctx context.Context, raw []byte) error {
	var data ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return &ImportError{Message: "import data is not valid JSON: " + err.Error()}
	}
	return s.Import(ctx, &data)
}
