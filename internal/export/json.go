// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/contextvault/internal/history"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports the conversation to JSON format.
// NOTE: JSON exports always include the complete envelope and do not respect
// filtering options. This ensures the exported JSON is a faithful
// representation that can be re-imported.
type JSONExporter struct {
	// Options are accepted for consistency with other exporters but JSON
	// exports always include complete data.
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts the export data to indented JSON.
func (e *JSONExporter) Export(data *history.ExportData) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("export data is nil")
	}
	return json.MarshalIndent(data, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
