// contextvault - a conversational context cache for local LLM chat.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	"github.com/jeranaias/contextvault/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	var err error
	switch cmd {
	case cli.CmdAdd:
		err = cli.HandleAdd(args)
	case cli.CmdList:
		err = cli.HandleList(args)
	case cli.CmdSearch:
		err = cli.HandleSearch(args)
	case cli.CmdStats:
		err = cli.HandleStats(args)
	case cli.CmdCleanup:
		err = cli.HandleCleanup(args)
	case cli.CmdSummarize:
		err = cli.HandleSummarize(args)
	case cli.CmdExport:
		err = cli.HandleExport(args)
	case cli.CmdImport:
		err = cli.HandleImport(args)
	case cli.CmdClear:
		err = cli.HandleClear(args)
	case cli.CmdContext:
		err = cli.HandleContext(args)
	case cli.CmdSettings:
		err = cli.HandleSettings(args)
	case cli.CmdDoctor:
		err = cli.HandleDoctor(args)
	case cli.CmdVersion:
		cli.PrintVersion()
	case cli.CmdHelp:
		cli.PrintUsage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
