// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export provides conversation export functionality for contextvault.
//
// This package renders the history coordinator's export envelope into
// portable formats suitable for archival or re-import.
//
// # Key Types
//
//   - Exporter: Main export interface
//   - MarkdownExporter: Human-readable Markdown output
//   - JSONExporter: Machine-readable output that round-trips through import
//   - Options: Export configuration options
//
// # Usage
//
// Export the conversation:
//
//	data, err := store.Export(ctx)
//	path, err := export.ExportMarkdown(data, nil)
//
// Pick an exporter by name:
//
//	exp, err := export.ByFormat("json", nil)
//	content, err := exp.Export(data)
package export
