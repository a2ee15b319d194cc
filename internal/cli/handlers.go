// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// handlers.go - Command handlers for the contextvault CLI.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/contextvault/internal/config"
	"github.com/jeranaias/contextvault/internal/export"
	"github.com/jeranaias/contextvault/internal/history"
	"github.com/jeranaias/contextvault/internal/model"
	"github.com/jeranaias/contextvault/internal/storage"
)

// =============================================================================
// MESSAGE COMMANDS
// =============================================================================

// HandleAdd appends a message to the history.
func HandleAdd(args []string) error {
	parser := NewArgParser(args)
	content := strings.Join(parser.PositionalFrom(0), " ")
	if content == "" {
		return errors.New("usage: contextvault add [--role user|assistant] <message>")
	}

	role := model.Role(parser.FlagOrDefault("role", string(model.RoleUser)))

	ctx := context.Background()
	app, err := NewApp(ctx, parser)
	if err != nil {
		return err
	}
	defer app.Close()

	msg, err := app.Cache.AddMessage(ctx, role, content)
	if err != nil {
		return err
	}

	if parser.BoolFlag("json") {
		return printJSON(msg)
	}

	status := ""
	if msg.IsSummarized {
		status = WarningStyle.Render(" (summarized)")
	}
	fmt.Printf("%s %s, %d tokens%s\n",
		SuccessStyle.Render("Stored"), msg.ID, msg.TokenCount, status)
	return nil
}

// HandleList shows the budgeted conversation window, or the full history
// with --all.
func HandleList(args []string) error {
	parser := NewArgParser(args)

	ctx := context.Background()
	app, err := NewApp(ctx, parser)
	if err != nil {
		return err
	}
	defer app.Close()

	var msgs []*model.Message
	if parser.BoolFlag("all") {
		msgs, err = app.Cache.AllMessages(ctx)
	} else {
		msgs, err = app.Cache.ConversationMessages(ctx)
	}
	if err != nil {
		return err
	}

	if roleFilter := parser.Flag("role"); roleFilter != "" {
		role := model.Role(roleFilter)
		if !role.IsValid() {
			return fmt.Errorf("invalid role %q", roleFilter)
		}
		filtered := msgs[:0]
		for _, m := range msgs {
			if m.Role == role {
				filtered = append(filtered, m)
			}
		}
		msgs = filtered
	}

	if parser.BoolFlag("json") {
		return printJSON(msgs)
	}

	if len(msgs) == 0 {
		fmt.Println(DimStyle.Render("No messages."))
		return nil
	}

	printMessageTable(msgs)
	return nil
}

// HandleSearch performs a case-insensitive content search.
func HandleSearch(args []string) error {
	parser := NewArgParser(args)
	query := strings.Join(parser.PositionalFrom(0), " ")
	if query == "" {
		return errors.New("usage: contextvault search <query>")
	}

	ctx := context.Background()
	app, err := NewApp(ctx, parser)
	if err != nil {
		return err
	}
	defer app.Close()

	msgs, err := app.Cache.SearchMessages(ctx, query)
	if err != nil {
		return err
	}

	if parser.BoolFlag("json") {
		return printJSON(msgs)
	}

	if len(msgs) == 0 {
		fmt.Println(DimStyle.Render("No matches."))
		return nil
	}
	printMessageTable(msgs)
	return nil
}

// printMessageTable renders messages as an aligned table.
func printMessageTable(msgs []*model.Message) {
	table := NewTable("When", "Role", "Tokens", "Content")
	for _, m := range msgs {
		flags := ""
		if m.IsSummarized {
			flags = " [S]"
		}
		table.AddRow(
			m.Timestamp.Format("Jan 2 15:04"),
			m.Role.DisplayName(),
			fmt.Sprintf("%d", m.TokenCount),
			m.Preview(60)+flags,
		)
	}
	fmt.Print(table.Render())
	fmt.Println(DimStyle.Render(fmt.Sprintf("%d messages", len(msgs))))
}

// =============================================================================
// MAINTENANCE COMMANDS
// =============================================================================

// HandleStats shows message and token statistics.
func HandleStats(args []string) error {
	parser := NewArgParser(args)

	ctx := context.Background()
	app, err := NewApp(ctx, parser)
	if err != nil {
		return err
	}
	defer app.Close()

	stats, err := app.Cache.Stats(ctx)
	if err != nil {
		return err
	}
	usage, err := app.Cache.TokenUsage(ctx)
	if err != nil {
		return err
	}

	if parser.BoolFlag("json") {
		return printJSON(map[string]interface{}{
			"stats": stats,
			"usage": usage,
		})
	}

	fmt.Println(TitleStyle.Render("Conversation Statistics"))
	fmt.Printf("%s %d\n", LabelStyle.Render("Messages:"), stats.TotalMessages)
	fmt.Printf("%s %d user / %d assistant\n", LabelStyle.Render("By role:"),
		stats.UserMessages, stats.AssistantMessages)
	fmt.Printf("%s %d\n", LabelStyle.Render("Summarized:"), stats.SummarizedMessages)
	fmt.Printf("%s %d (%.1f avg/message)\n", LabelStyle.Render("Tokens:"),
		stats.TotalTokens, stats.AverageTokensPerMsg)
	fmt.Printf("%s %d / %d (%.1f%%), %d reserved\n", LabelStyle.Render("Budget:"),
		usage.UsedTokens, usage.MaxTokens, usage.Percent, usage.ReserveTokens)
	if stats.OldestTimestamp != nil && stats.NewestTimestamp != nil {
		fmt.Printf("%s %s to %s\n", LabelStyle.Render("Range:"),
			stats.OldestTimestamp.Format("Jan 2, 2006"),
			stats.NewestTimestamp.Format("Jan 2, 2006"))
	}
	return nil
}

// HandleCleanup trims the history to the token budget and message cap.
func HandleCleanup(args []string) error {
	parser := NewArgParser(args)

	ctx := context.Background()
	app, err := NewApp(ctx, parser)
	if err != nil {
		return err
	}
	defer app.Close()

	// Age-based pruning runs first when requested, then the budget pass.
	if maxAge := parser.FlagIntOrDefault("max-age", 0); maxAge > 0 {
		res, err := app.Cache.PruneByAge(ctx, maxAge)
		if err != nil {
			return err
		}
		fmt.Printf("Age pruning removed %d messages (%d tokens)\n",
			res.MessagesRemoved, res.TokensRemoved)
	}

	res, err := app.Cache.Cleanup(ctx)
	if err != nil {
		return err
	}
	if res.MessagesRemoved == 0 {
		fmt.Println(SuccessStyle.Render("History already within budget."))
		return nil
	}
	fmt.Printf("%s %d messages (%d tokens)\n",
		SuccessStyle.Render("Removed"), res.MessagesRemoved, res.TokensRemoved)
	return nil
}

// HandleSummarize retroactively summarizes stored oversized messages.
func HandleSummarize(args []string) error {
	parser := NewArgParser(args)

	ctx := context.Background()
	app, err := NewApp(ctx, parser)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Cache.SummarizeExisting(ctx)
	if err != nil {
		return err
	}
	if res.MessagesSummarized == 0 {
		fmt.Println(DimStyle.Render("Nothing to summarize."))
		return nil
	}
	fmt.Printf("%s %d messages, saved %d tokens\n",
		SuccessStyle.Render("Summarized"), res.MessagesSummarized, res.TokensSaved)
	return nil
}

// HandleClear wipes the history and session context.
func HandleClear(args []string) error {
	parser := NewArgParser(args)
	if !parser.BoolFlag("confirm") {
		return errors.New("refusing to clear without --confirm")
	}

	ctx := context.Background()
	app, err := NewApp(ctx, parser)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Cache.ClearAll(ctx); err != nil {
		return err
	}
	fmt.Println(SuccessStyle.Render("Conversation history cleared."))
	return nil
}

// =============================================================================
// EXPORT / IMPORT COMMANDS
// =============================================================================

// HandleExport writes the conversation to a file.
func HandleExport(args []string) error {
	parser := NewArgParser(args)
	format := parser.FlagOrDefault("format", parser.Positional(0))
	if format == "" {
		format = "markdown"
	}

	opts := export.DefaultOptions()
	if out := parser.Flag("out"); out != "" {
		opts.OutputDir = out
	}

	exporter, err := export.ByFormat(format, opts)
	if err != nil {
		return err
	}

	ctx := context.Background()
	app, err := NewApp(ctx, parser)
	if err != nil {
		return err
	}
	defer app.Close()

	data, err := app.Cache.Export(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			return errors.New("nothing to export: no conversation stored yet")
		}
		return err
	}

	path, err := export.ExportToFile(data, exporter, opts)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", SuccessStyle.Render("Exported to"), path)
	return nil
}

// HandleImport replaces the history with a JSON export file.
func HandleImport(args []string) error {
	parser := NewArgParser(args)
	path := parser.Positional(0)
	if path == "" {
		return errors.New("usage: contextvault import <file.json>")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}

	ctx := context.Background()
	app, err := NewApp(ctx, parser)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Cache.ImportJSON(ctx, raw); err != nil {
		if errors.Is(err, history.ErrInvalidImport) {
			return fmt.Errorf("import rejected, existing history untouched: %w", err)
		}
		return err
	}
	fmt.Println(SuccessStyle.Render("Import complete."))
	return nil
}

// =============================================================================
// CONTEXT AND SETTINGS COMMANDS
// =============================================================================

// HandleContext shows the ambient context block.
func HandleContext(args []string) error {
	parser := NewArgParser(args)

	ctx := context.Background()
	app, err := NewApp(ctx, parser)
	if err != nil {
		return err
	}
	defer app.Close()

	if parser.BoolFlag("refresh-location") {
		if err := app.Cache.RefreshLocation(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%s location refresh failed: %v\n",
				WarningStyle.Render("Warning:"), err)
		}
	}

	if parser.BoolFlag("json") {
		s := app.Cache.SessionContext()
		return printJSON(s)
	}

	fmt.Println(app.Cache.ContextBlock())
	return nil
}

// HandleSettings shows or updates configuration.
func HandleSettings(args []string) error {
	parser := NewArgParser(args)

	switch parser.Subcommand() {
	case "", "show":
		cfg := config.Global()
		if parser.BoolFlag("json") {
			return printJSON(cfg)
		}
		fmt.Println(TitleStyle.Render("Settings"))
		table := NewTable("Key", "Value")
		for _, key := range config.GetAllKeys() {
			v, err := cfg.Get(key)
			if err != nil {
				continue
			}
			table.AddRow(key, fmt.Sprintf("%v", v))
		}
		fmt.Print(table.Render())
		return nil

	case "set":
		key := parser.Positional(1)
		value := parser.Positional(2)
		if key == "" || value == "" {
			return errors.New("usage: contextvault settings set <key> <value>")
		}
		cfg := config.Global().Clone()
		if err := cfg.Set(key, value); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("rejected: %w", err)
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		config.SetGlobal(cfg)
		fmt.Printf("%s %s = %s\n", SuccessStyle.Render("Set"), key, value)
		return nil

	default:
		return fmt.Errorf("unknown settings subcommand %q", parser.Subcommand())
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
