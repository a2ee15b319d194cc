// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/contextvault/internal/history"
	"github.com/jeranaias/contextvault/internal/model"
)

func sampleExport() *history.ExportData {
	sess := model.NewSessionContext()
	msgs := []*model.Message{
		model.NewUserMessage("What's the plan for today?"),
		model.NewAssistantMessage("Reviewing the backlog first."),
	}
	total := 0
	for _, m := range msgs {
		total += m.TokenCount
	}
	return &history.ExportData{
		Messages: msgs,
		Context:  sess,
		Metadata: history.ExportMetadata{
			ExportDate:    time.Now(),
			TotalMessages: len(msgs),
			TotalTokens:   total,
			Version:       history.ExportVersion,
		},
	}
}

func TestMarkdownExport(t *testing.T) {
	data := sampleExport()
	content, err := NewMarkdownExporter(nil).Export(data)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := string(content)

	for _, want := range []string{
		"# Conversation History",
		"## Session Context",
		"### You",
		"### Assistant",
		"What's the plan for today?",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestMarkdownExportWithoutMetadata(t *testing.T) {
	opts := DefaultOptions()
	opts.IncludeMetadata = false
	opts.IncludeTimestamps = false

	content, err := NewMarkdownExporter(opts).Export(sampleExport())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := string(content)
	if strings.Contains(out, "---\ndate:") {
		t.Error("frontmatter present despite IncludeMetadata=false")
	}
	if strings.Contains(out, "<sub>") {
		t.Error("timestamps present despite IncludeTimestamps=false")
	}
}

func TestMarkdownExportRejectsEmpty(t *testing.T) {
	e := NewMarkdownExporter(nil)
	if _, err := e.Export(nil); err == nil {
		t.Error("accepted nil data")
	}
	if _, err := e.Export(&history.ExportData{}); err == nil {
		t.Error("accepted empty conversation")
	}
}

func TestJSONExportRoundTrips(t *testing.T) {
	data := sampleExport()
	content, err := NewJSONExporter(nil).Export(data)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	var decoded history.ExportData
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded.Messages) != len(data.Messages) {
		t.Errorf("messages = %d, want %d", len(decoded.Messages), len(data.Messages))
	}
	if decoded.Metadata.Version != history.ExportVersion {
		t.Errorf("version = %q", decoded.Metadata.Version)
	}
	if decoded.Messages[0].Content != data.Messages[0].Content {
		t.Error("message content lost in round trip")
	}
}

func TestExportToFile(t *testing.T) {
	opts := DefaultOptions()
	opts.OutputDir = t.TempDir()

	path, err := ExportMarkdown(sampleExport(), opts)
	if err != nil {
		t.Fatalf("ExportMarkdown: %v", err)
	}
	if !strings.HasSuffix(path, ".md") {
		t.Errorf("unexpected extension: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("exported file missing: %v", err)
	}
}

func TestByFormat(t *testing.T) {
	if _, err := ByFormat("markdown", nil); err != nil {
		t.Errorf("markdown: %v", err)
	}
	if _, err := ByFormat("md", nil); err != nil {
		t.Errorf("md alias: %v", err)
	}
	if _, err := ByFormat("json", nil); err != nil {
		t.Errorf("json: %v", err)
	}
	if _, err := ByFormat("xml", nil); err == nil {
		t.Error("accepted unknown format")
	}
}
