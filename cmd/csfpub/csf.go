package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ryotapoi/csfpub/internal/csf"
)

func newEmbedCmd() *cobra.Command {
	var (
		output string
		dryRun bool
		format string
	)
	cmd := &cobra.Command{
		Use:   "embed <file.csf>",
		Short: "Convert Obsidian image embeds in a CSF file into image macros",
		Long: `embed replaces ![[image.png]] and ![[image.png|300]] left in a Confluence
Storage Format file with <ac:image> macros that reference the image as a
page attachment. The file is rewritten in place unless --output is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			in := args[0]
			info, err := os.Stat(in)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			converted, n := csf.ConvertEmbeds(string(data))

			dest := in
			if output != "" {
				dest = output
			}
			if !dryRun && (n > 0 || dest != in) {
				if err := os.WriteFile(dest, []byte(converted), info.Mode().Perm()); err != nil {
					return fmt.Errorf("write %s: %w", dest, err)
				}
			}

			w := cmd.OutOrStdout()
			if format == "json" {
				return writeJSON(w, embedJSON{Path: dest, Converted: n, DryRun: dryRun})
			}
			printEmbedText(w, dest, n, dryRun)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result here instead of in place")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the number of embeds without writing")
	cmd.Flags().StringVar(&format, "format", "text", "output format (json or text)")
	return cmd
}

func newAttachmentsCmd() *cobra.Command {
	var (
		searchRoot string
		format     string
	)
	cmd := &cobra.Command{
		Use:   "attachments <file.csf>",
		Short: "List attachments a CSF file references and where they are on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			roots := parseList(searchRoot)
			if len(roots) == 0 {
				roots = []string{filepath.Dir(args[0])}
			}
			atts := findAttachments(csf.AttachmentNames(string(data)), roots)

			w := cmd.OutOrStdout()
			if format == "json" {
				return writeJSON(w, atts)
			}
			printAttachmentsText(w, atts)
			return nil
		},
	}
	cmd.Flags().StringVar(&searchRoot, "search-root", "", "comma-separated directories to search (default: the CSF file's directory)")
	cmd.Flags().StringVar(&format, "format", "text", "output format (json or text)")
	return cmd
}
