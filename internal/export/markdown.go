// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/contextvault/internal/history"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports the conversation to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts the export data to Markdown format.
func (e *MarkdownExporter) Export(data *history.ExportData) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("export data is nil")
	}
	if len(data.Messages) == 0 {
		return nil, fmt.Errorf("conversation has no messages")
	}

	var sb strings.Builder

	// YAML frontmatter with metadata
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("date: %s\n", data.Metadata.ExportDate.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("messages: %d\n", data.Metadata.TotalMessages))
		sb.WriteString(fmt.Sprintf("tokens: %d\n", data.Metadata.TotalTokens))
		sb.WriteString(fmt.Sprintf("version: %s\n", data.Metadata.Version))
		sb.WriteString("generator: contextvault\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString("# Conversation History\n\n")

	// Ambient context section
	if e.options.IncludeMetadata && data.Context != nil {
		sb.WriteString("## Session Context\n\n")
		sb.WriteString(fmt.Sprintf("- **Date**: %s\n", data.Context.CurrentDate))
		sb.WriteString(fmt.Sprintf("- **Location**: %s\n", data.Context.Location))
		if data.Context.Coordinates != nil {
			sb.WriteString(fmt.Sprintf("- **Coordinates**: %s\n", data.Context.Coordinates.String()))
		}
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")

	for i, msg := range data.Messages {
		roleLabel := msg.Role.DisplayName()
		if e.options.IncludeTimestamps {
			sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n",
				roleLabel,
				msg.Timestamp.Format("Jan 2, 2006 15:04")))
		} else {
			sb.WriteString(fmt.Sprintf("### %s\n\n", roleLabel))
		}

		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")

		if msg.IsSummarized {
			sb.WriteString("*[summarized]*\n\n")
		}

		if i < len(data.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}
