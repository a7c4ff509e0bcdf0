package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ryotapoi/csfpub/internal/confluence"
	"github.com/ryotapoi/csfpub/internal/core"
	"github.com/ryotapoi/csfpub/internal/ledger"
	"github.com/ryotapoi/csfpub/internal/logging"
	"github.com/ryotapoi/csfpub/internal/publish"
	"github.com/ryotapoi/csfpub/internal/workflow"
)

// TokenEnv holds the Confluence personal access token.
const TokenEnv = "CSFPUB_TOKEN"

type publishFlags struct {
	title          string
	parent         string
	space          string
	domain         string
	basePath       string
	token          string
	searchRoot     string
	updateIfExists bool
	force          bool
	noLedger       bool
	vault          string
	format         string
}

func (f *publishFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "page title (default: the file name without extension)")
	cmd.Flags().StringVar(&f.parent, "parent", "", "parent page ID (default from csfpub.yaml)")
	cmd.Flags().StringVar(&f.space, "space", "", "space key (default from csfpub.yaml)")
	cmd.Flags().StringVar(&f.domain, "domain", "", "Confluence host name (default from csfpub.yaml)")
	cmd.Flags().StringVar(&f.basePath, "base-path", "", "Confluence context path (default from csfpub.yaml)")
	cmd.Flags().StringVar(&f.token, "token", "", "personal access token (default $"+TokenEnv+")")
	cmd.Flags().StringVar(&f.searchRoot, "search-root", "", "comma-separated directories to search for attachments")
	cmd.Flags().BoolVar(&f.updateIfExists, "update-if-exists", false, "update a same-titled page under the parent instead of creating one")
	cmd.Flags().BoolVar(&f.force, "force", false, "re-upload attachments even when unchanged")
	cmd.Flags().BoolVar(&f.noLedger, "no-ledger", false, "do not read or write the publish ledger")
	cmd.Flags().StringVar(&f.vault, "vault", "", "directory holding csfpub.yaml and the ledger")
	cmd.Flags().StringVar(&f.format, "format", "text", "output format (json or text)")
}

// session is everything a publish needs once flags and config are merged.
type session struct {
	cfg    core.Config
	logs   *logging.Root
	client *confluence.Client
	opts   publish.Options
	ledger *ledger.Ledger
}

func (s *session) store() publish.Store {
	if s.ledger == nil {
		return nil
	}
	return s.ledger
}

func (s *session) close() {
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			s.logs.Named("ledger").Warn("close ledger", "error", err)
		}
	}
}

// openSession merges flags over csfpub.yaml in vault. defaultRoot is the
// attachment search root used when --search-root is empty.
func openSession(cmd *cobra.Command, f publishFlags, vault, defaultRoot string) (*session, error) {
	if err := validateFormat(f.format); err != nil {
		return nil, err
	}
	cfg, err := core.LoadConfig(vault)
	if err != nil {
		return nil, err
	}
	logs, err := newLogger(cmd, cfg.Log)
	if err != nil {
		return nil, err
	}

	cc := cfg.Confluence
	domain := firstNonEmpty(f.domain, cc.Domain)
	basePath := firstNonEmpty(f.basePath, cc.BasePath)
	space := firstNonEmpty(f.space, cc.SpaceKey)
	parent := firstNonEmpty(f.parent, cc.ParentPageID)
	token := firstNonEmpty(f.token, os.Getenv(TokenEnv))

	switch {
	case domain == "":
		return nil, fmt.Errorf("confluence domain is required (--domain or confluence.domain)")
	case space == "":
		return nil, fmt.Errorf("space key is required (--space or confluence.space_key)")
	case parent == "":
		return nil, fmt.Errorf("parent page ID is required (--parent or confluence.parent_page_id)")
	case token == "":
		return nil, fmt.Errorf("access token is required (--token or $%s)", TokenEnv)
	}
	cfg.Confluence.Domain = domain

	roots := parseList(f.searchRoot)
	if len(roots) == 0 {
		roots = []string{defaultRoot}
	}

	s := &session{
		cfg:    cfg,
		logs:   logs,
		client: confluence.New(domain, basePath, token),
		opts: publish.Options{
			Title:          f.title,
			ParentID:       parent,
			SpaceKey:       space,
			SearchRoots:    roots,
			UpdateIfExists: f.updateIfExists,
			Force:          f.force,
			Logger:         logs.Named("publish"),
		},
	}
	if !f.noLedger {
		l, err := ledger.Open(vault)
		if err != nil {
			return nil, err
		}
		s.ledger = l
	}
	return s, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func newPublishCmd() *cobra.Command {
	var f publishFlags
	cmd := &cobra.Command{
		Use:   "publish <file.csf>",
		Short: "Publish a CSF page and its attachments to Confluence",
		Long: `publish creates a page under the parent page, or updates the existing
same-titled page when --update-if-exists is set, and uploads every
attachment the page references. Attachments whose content has not changed
since the last publish are skipped unless --force is given.`,
		Example: `CSFPUB_TOKEN=... csfpub publish note.csf --domain wiki.example.com --space DOC --parent 12345`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			csfPath := args[0]
			vault := firstNonEmpty(f.vault, ".")
			s, err := openSession(cmd, f, vault, filepath.Dir(csfPath))
			if err != nil {
				return err
			}
			defer s.close()

			opts := s.opts
			opts.CSFPath = csfPath
			result, err := publish.Publish(cmd.Context(), s.client, s.store(), opts)
			if err != nil {
				return err
			}
			return reportPublish(cmd, f.format, result)
		},
	}
	f.register(cmd)
	return cmd
}

func newWorkflowCmd() *cobra.Command {
	var (
		f       publishFlags
		skipFix bool
	)
	cmd := &cobra.Command{
		Use:   "workflow <note.md>",
		Short: "Fix, convert and publish a single note",
		Long: `workflow runs the whole pipeline for one Markdown note: it fixes image
names in the note's directory, runs the configured converter to produce
<note>.csf, converts leftover embeds into image macros and publishes the
page with its attachments.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			note := args[0]
			dir := filepath.Dir(note)
			vault := firstNonEmpty(f.vault, dir)
			s, err := openSession(cmd, f, vault, dir)
			if err != nil {
				return err
			}
			defer s.close()

			result, err := workflow.Run(cmd.Context(), workflow.Options{
				NotePath: note,
				Config:   s.cfg,
				Publish:  s.opts,
				API:      s.client,
				Store:    s.store(),
				SkipFix:  skipFix,
				Logger:   s.logs.Named("workflow"),
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if f.format == "text" {
				switch {
				case result.FixErr != nil:
					fmt.Fprintf(w, "fix: failed: %v\n", result.FixErr)
				case result.Fix != nil:
					fmt.Fprintf(w, "fix: renamed %d file(s), updated %d document(s)\n",
						len(result.Fix.Renames)-len(result.Fix.RenameFailures()), len(result.Fix.ChangedDocuments()))
				}
				fmt.Fprintf(w, "convert: %s (%d embed(s) converted)\n", result.CSFPath, result.Converted)
			}
			return reportPublish(cmd, f.format, result.Publish)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&skipFix, "skip-fix", false, "do not rename images before converting")
	return cmd
}

// reportPublish prints the result and fails the command if any attachment
// failed or was missing.
func reportPublish(cmd *cobra.Command, format string, r *publish.Result) error {
	w := cmd.OutOrStdout()
	if format == "json" {
		if err := writeJSON(w, toPublishJSON(r)); err != nil {
			return err
		}
	} else {
		printPublishText(w, r)
	}
	if n := r.Count(publish.StatusFailed) + len(r.Missing); n > 0 {
		return fmt.Errorf("%d attachment(s) failed or missing", n)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "history [vault]",
		Short: "Show recent fix and publish runs recorded in the ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			vault := "."
			if len(args) > 0 {
				vault = args[0]
			}
			w := cmd.OutOrStdout()
			if _, err := os.Stat(ledger.Path(vault)); os.IsNotExist(err) {
				if format == "json" {
					return writeJSON(w, []ledger.Run{})
				}
				printHistoryText(w, nil)
				return nil
			}
			l, err := ledger.Open(vault)
			if err != nil {
				return err
			}
			defer l.Close()
			runs, err := l.Runs(limit)
			if err != nil {
				return err
			}
			if format == "json" {
				if runs == nil {
					runs = []ledger.Run{}
				}
				return writeJSON(w, runs)
			}
			printHistoryText(w, runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().StringVar(&format, "format", "text", "output format (json or text)")
	return cmd
}
