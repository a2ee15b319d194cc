// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Storage and configuration diagnostics.
//
// Command: doctor
// Aliases: diag
//
// Health Checks Performed:
//   1. Config Valid       - Validates the configuration file
//   2. Data Dir Writable  - Checks data directory permissions
//   3. Structured Backend - SQLite open + read/write self-test
//   4. Fallback Backend   - Flat-file read/write self-test
//   5. Document Loadable  - Stored conversation parses cleanly
//
// Exit Codes:
//   0   All checks passed
//   1   One or more checks failed
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeranaias/contextvault/internal/config"
	"github.com/jeranaias/contextvault/internal/storage"
)

// checkResult is one doctor health check outcome.
type checkResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warn", "fail"
	Message string `json:"message"`
}

// HandleDoctor runs all health checks and reports results.
func HandleDoctor(args []string) error {
	parser := NewArgParser(args)
	ctx := context.Background()

	cfg := config.Global().Clone()
	if dir := parser.Flag("data-dir"); dir != "" {
		cfg.Storage.DataDir = dir
	}

	var results []checkResult

	// 1. Config valid
	if err := cfg.Validate(); err != nil {
		results = append(results, checkResult{"Config Valid", "fail", err.Error()})
	} else {
		results = append(results, checkResult{"Config Valid", "ok", "configuration validates"})
	}

	// 2. Data dir writable
	dataDir, err := cfg.DataDir()
	if err != nil {
		results = append(results, checkResult{"Data Dir Writable", "fail", err.Error()})
	} else if err := checkWritable(dataDir); err != nil {
		results = append(results, checkResult{"Data Dir Writable", "fail", err.Error()})
	} else {
		results = append(results, checkResult{"Data Dir Writable", "ok", dataDir})
	}

	// 3, 4, 5. Backends and document, only when the data dir is usable.
	if dataDir != "" {
		results = append(results, checkSQLite(ctx, dataDir))
		results = append(results, checkFlatFile(ctx, dataDir))
		results = append(results, checkDocument(ctx, dataDir))
	}

	if parser.BoolFlag("json") {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		fmt.Println(TitleStyle.Render("contextvault doctor"))
		for _, r := range results {
			fmt.Printf("%s %s %s\n",
				RenderStatus(r.Status),
				padCell(r.Name, 22),
				DimStyle.Render(r.Message))
		}
	}

	for _, r := range results {
		if r.Status == "fail" {
			os.Exit(1)
		}
	}
	return nil
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0600); err != nil {
		return err
	}
	return os.Remove(probe)
}

func checkSQLite(ctx context.Context, dataDir string) checkResult {
	backend, err := storage.NewSQLiteBackend(filepath.Join(dataDir, "context.db"))
	if err != nil {
		// Not fatal: the flat-file fallback carries the load.
		return checkResult{"Structured Backend", "warn", err.Error()}
	}
	defer backend.Close()
	if !backend.SelfTest(ctx) {
		return checkResult{"Structured Backend", "warn", "self-test failed, fallback in use"}
	}
	return checkResult{"Structured Backend", "ok", "sqlite self-test passed"}
}

func checkFlatFile(ctx context.Context, dataDir string) checkResult {
	backend, err := storage.NewFileBackend(dataDir)
	if err != nil {
		return checkResult{"Fallback Backend", "fail", err.Error()}
	}
	defer backend.Close()
	if !backend.SelfTest(ctx) {
		return checkResult{"Fallback Backend", "fail", "flat-file self-test failed"}
	}
	return checkResult{"Fallback Backend", "ok", "flat-file self-test passed"}
}

func checkDocument(ctx context.Context, dataDir string) checkResult {
	backend, err := storage.Open(dataDir)
	if err != nil {
		return checkResult{"Document Loadable", "fail", err.Error()}
	}
	defer backend.Close()

	doc, err := backend.Load(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			return checkResult{"Document Loadable", "ok", "no document yet (fresh install)"}
		}
		return checkResult{"Document Loadable", "fail", err.Error()}
	}
	return checkResult{"Document Loadable", "ok",
		fmt.Sprintf("%d messages via %s", len(doc.Messages), backend.Name())}
}
