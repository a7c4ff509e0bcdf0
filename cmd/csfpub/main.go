package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/ryotapoi/csfpub/internal/logging"
)

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(version),
		fang.WithoutCompletions(),
		fang.WithoutManpage(),
	); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "csfpub",
		Short: "Prepare Obsidian notes and publish them to Confluence",
		Long: `csfpub renames vault images whose names contain spaces and rewrites
every Markdown reference to them, converts Obsidian embeds in Confluence
Storage Format (CSF) files into image macros, and publishes CSF pages with
their attachments.

Commands that change files default to a dry run.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (console, json, pretty)")

	root.AddCommand(
		newFixCmd(),
		newEmbedCmd(),
		newAttachmentsCmd(),
		newPublishCmd(),
		newWorkflowCmd(),
		newHistoryCmd(),
	)
	return root
}

// newLogger builds the root logger from config, letting the persistent flags
// override it. Without any setting the CLI logs warnings only, so command
// output on stdout stays clean.
func newLogger(cmd *cobra.Command, cfg logging.Config) (*logging.Root, error) {
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Format = v
	}
	if cfg.Level == "" {
		cfg.Level = "warn"
	}
	root, err := logging.New(cfg)
	if err != nil {
		return nil, err
	}
	return root, nil
}

// validateFormat checks that format is "json" or "text".
func validateFormat(format string) error {
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid format: %q (must be json or text)", format)
	}
	return nil
}

// parseList splits a comma-separated flag value. Returns nil for empty input.
func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
