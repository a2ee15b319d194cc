// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command routing for contextvault.
package cli

import (
	"fmt"
	"os"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdAdd Command = iota
	CmdList
	CmdSearch
	CmdStats
	CmdCleanup
	CmdSummarize
	CmdExport
	CmdImport
	CmdClear
	CmdContext
	CmdSettings
	CmdDoctor
	CmdVersion
	CmdHelp
)

const usageText = `contextvault - conversational context cache for local LLM chat

Contextvault keeps a bounded, token-budgeted conversation history with
deterministic summarization and ambient session context, persisted to an
embedded database with a flat-file fallback.

Usage:
  contextvault add <message>         Append a message to the history
    --role user|assistant            Sender role (default: user)
  contextvault list                  Show the budgeted conversation window
    --all                            Show the full stored history
    --role user|assistant            Filter by role
  contextvault search <query>        Case-insensitive content search
  contextvault stats                 Message and token statistics
  contextvault cleanup               Trim history to the token budget
    --max-age <days>                 Also drop messages older than N days
  contextvault summarize             Summarize stored oversized messages
  contextvault export [markdown|json] Export the conversation
    --out <dir>                      Output directory (default: .)
  contextvault import <file>         Import a JSON export
  contextvault clear --confirm       Wipe history and session context
  contextvault context               Show the ambient context block
    --refresh-location               Resolve and store the location first
  contextvault settings [show|set]   Summarization settings
  contextvault doctor                Storage diagnostics
  contextvault version               Show version information

Settings Commands:
  contextvault settings show                 Show current settings
  contextvault settings set <key> <value>    Update a config value
    keys: summarization.threshold, summarization.max_length,
          budget.max_tokens, budget.reserve_tokens, ...

Global Flags:
  --json         Output in JSON format where supported
  --data-dir     Override the data directory

Examples:
  contextvault add "remind me about the standup"
  contextvault add --role assistant "Noted, standup at 9:30."
  contextvault list --all
  contextvault search standup
  contextvault export json --out ~/backups
`

// Parse parses os.Args and returns the command and its remaining arguments.
func Parse() (Command, []string) {
	args := os.Args[1:]
	if len(args) == 0 {
		return CmdHelp, nil
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "add":
		return CmdAdd, rest
	case "list", "ls":
		return CmdList, rest
	case "search":
		return CmdSearch, rest
	case "stats":
		return CmdStats, rest
	case "cleanup":
		return CmdCleanup, rest
	case "summarize":
		return CmdSummarize, rest
	case "export":
		return CmdExport, rest
	case "import":
		return CmdImport, rest
	case "clear":
		return CmdClear, rest
	case "context", "ctx":
		return CmdContext, rest
	case "settings", "config":
		return CmdSettings, rest
	case "doctor", "diag":
		return CmdDoctor, rest
	case "version", "--version", "-v":
		return CmdVersion, rest
	case "help", "--help", "-h":
		return CmdHelp, rest
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		return CmdHelp, rest
	}
}

// PrintUsage writes the usage text to stdout.
func PrintUsage() {
	fmt.Print(usageText)
}

// PrintVersion writes version information to stdout.
func PrintVersion() {
	fmt.Printf("contextvault %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}
