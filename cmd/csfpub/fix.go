package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryotapoi/csfpub/internal/core"
	"github.com/ryotapoi/csfpub/internal/ledger"
	"github.com/ryotapoi/csfpub/internal/logging"
)

type fixFlags struct {
	apply  bool
	ext    string
	format string
}

func newFixCmd() *cobra.Command {
	var f fixFlags
	cmd := &cobra.Command{
		Use:   "fix [vault]",
		Short: "Rename images with spaces and rewrite references to them",
		Long: `fix renames image files whose names contain spaces or %20 to a
hyphenated form and rewrites Markdown and wiki-link references in every
document of the vault. Without --apply it only reports what would change.`,
		Example: `csfpub fix ~/notes
csfpub fix ~/notes --apply --ext .png,.jpg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFix(cmd, args, f)
		},
	}
	cmd.Flags().BoolVar(&f.apply, "apply", false, "rename files and rewrite documents")
	cmd.Flags().StringVar(&f.ext, "ext", "", "comma-separated image extensions (default from csfpub.yaml)")
	cmd.Flags().StringVar(&f.format, "format", "text", "output format (json or text)")
	return cmd
}

func runFix(cmd *cobra.Command, args []string, f fixFlags) error {
	if err := validateFormat(f.format); err != nil {
		return err
	}
	vault := "."
	if len(args) > 0 {
		vault = args[0]
	}
	var exts core.ExtensionSet
	if f.ext != "" {
		if exts = core.ParseExtensionList(f.ext); exts == nil {
			return fmt.Errorf("--ext %q names no extensions", f.ext)
		}
	}

	cfg, err := core.LoadConfig(vault)
	if err != nil {
		return err
	}
	logs, err := newLogger(cmd, cfg.Log)
	if err != nil {
		return err
	}

	result, err := core.Fix(vault, core.FixOptions{
		Apply:           f.apply,
		ImageExtensions: exts,
		Config:          &cfg,
		Logger:          logs.Named("fix"),
	})
	if err != nil {
		return err
	}

	var runID string
	if f.apply {
		runID = recordFixRun(result, logs.Named("ledger"))
	}

	w := cmd.OutOrStdout()
	switch f.format {
	case "json":
		if err := printFixJSON(w, result, runID); err != nil {
			return err
		}
	default:
		printFixText(w, result)
	}

	if n, m := len(result.RenameFailures()), len(result.DocumentFailures()); n+m > 0 {
		return fmt.Errorf("%d rename(s) and %d document(s) failed", n, m)
	}
	return nil
}

// recordFixRun appends an apply run to the vault ledger. A ledger failure
// only warns; the vault changes are already on disk.
func recordFixRun(r *core.FixResult, log logging.Logger) string {
	l, err := ledger.Open(r.Vault)
	if err != nil {
		log.Warn("open ledger", "error", err)
		return ""
	}
	defer l.Close()
	run, err := l.RecordRun(ledger.Run{
		Kind:             "fix",
		Mode:             "apply",
		Target:           r.Vault,
		Renames:          len(r.Renames) - len(r.RenameFailures()),
		RenameFailures:   len(r.RenameFailures()),
		Documents:        len(r.ChangedDocuments()),
		DocumentFailures: len(r.DocumentFailures()),
	})
	if err != nil {
		log.Warn("record run", "error", err)
		return ""
	}
	return run.ID
}
