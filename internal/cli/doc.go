// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface parsing and execution for
// contextvault.
//
// This package implements all CLI commands over the context cache,
// providing both human-readable and machine-readable output modes.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - ArgParser: Unified flag/subcommand/positional parsing
//   - App: Shared command wiring (config, storage, history, cache)
//   - Table: Width-aware plain-text table rendering
//
// # Usage
//
// Parse and execute commands:
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdAdd:
//	    return cli.HandleAdd(args)
//	case cli.CmdList:
//	    return cli.HandleList(args)
//	// ... other commands
//	}
//
// # Commands Overview
//
// Core commands:
//   - add: Append a message to the history
//   - list: Show the budgeted conversation window
//   - search: Case-insensitive content search
//   - stats: Message and token statistics
//
// Maintenance commands:
//   - cleanup: Trim history to the token budget
//   - summarize: Retroactive summarization
//   - export/import: Portable conversation archives
//   - clear: Wipe history and session context
//   - doctor: Storage diagnostics
//
// Most commands support a --json flag for scripting.
package cli
