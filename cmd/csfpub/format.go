package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ryotapoi/csfpub/internal/core"
	"github.com/ryotapoi/csfpub/internal/csf"
	"github.com/ryotapoi/csfpub/internal/ledger"
	"github.com/ryotapoi/csfpub/internal/publish"
)

const dryRunPrefix = "[DRY-RUN] "

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// --- Fix output ---

type fixJSONRename struct {
	Old   string `json:"old"`
	New   string `json:"new"`
	Error string `json:"error,omitempty"`
}

type fixJSONDocument struct {
	Path     string `json:"path"`
	Backup   string `json:"backup,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Error    string `json:"error,omitempty"`
}

type fixJSON struct {
	Vault           string            `json:"vault"`
	DryRun          bool              `json:"dry_run"`
	ImageExtensions []string          `json:"image_extensions"`
	Renames         []fixJSONRename   `json:"renames"`
	Documents       []fixJSONDocument `json:"documents"`
	RunID           string            `json:"run_id,omitempty"`
}

func printFixJSON(w io.Writer, r *core.FixResult, runID string) error {
	out := fixJSON{
		Vault:           r.Vault,
		DryRun:          r.DryRun,
		ImageExtensions: r.ImageExtensions,
		Renames:         make([]fixJSONRename, 0, len(r.Renames)),
		Documents:       make([]fixJSONDocument, 0, len(r.Documents)),
		RunID:           runID,
	}
	for _, o := range r.Renames {
		out.Renames = append(out.Renames, fixJSONRename{
			Old:   core.RelPath(r.Vault, o.Old),
			New:   core.RelPath(r.Vault, o.New),
			Error: errString(o.Err),
		})
	}
	for _, d := range r.Documents {
		doc := fixJSONDocument{
			Path:     core.RelPath(r.Vault, d.Path),
			Encoding: d.Encoding,
			Error:    errString(d.Err),
		}
		if d.Backup != "" {
			doc.Backup = core.RelPath(r.Vault, d.Backup)
		}
		out.Documents = append(out.Documents, doc)
	}
	return writeJSON(w, out)
}

func printFixText(w io.Writer, r *core.FixResult) {
	prefix := ""
	if r.DryRun {
		prefix = dryRunPrefix
		fmt.Fprintln(w, prefix+"mode: dry-run (no files will be changed; pass --apply to write)")
	} else {
		fmt.Fprintln(w, "mode: apply")
	}
	fmt.Fprintf(w, "vault: %s\n", r.Vault)
	fmt.Fprintf(w, "image_extensions: %s\n", strings.Join(r.ImageExtensions, ", "))

	fmt.Fprintln(w, "renames:")
	if len(r.Renames) == 0 {
		fmt.Fprintln(w, prefix+"No files require renaming.")
	}
	for _, o := range r.Renames {
		oldRel, newRel := core.RelPath(r.Vault, o.Old), core.RelPath(r.Vault, o.New)
		switch {
		case r.DryRun:
			fmt.Fprintf(w, "%swould rename: %s -> %s\n", prefix, oldRel, newRel)
		case o.Err != nil:
			fmt.Fprintf(w, "- failed: %s -> %s: %v\n", oldRel, newRel, o.Err)
		default:
			fmt.Fprintf(w, "- renamed: %s -> %s\n", oldRel, newRel)
		}
	}

	fmt.Fprintln(w, "documents:")
	if len(r.Documents) == 0 {
		fmt.Fprintln(w, prefix+"No documents require changes.")
	}
	for _, d := range r.Documents {
		rel := core.RelPath(r.Vault, d.Path)
		switch {
		case d.Err != nil:
			fmt.Fprintf(w, "%s- failed: %s: %v\n", prefix, rel, d.Err)
		case r.DryRun:
			fmt.Fprintf(w, "%swould update: %s\n", prefix, rel)
		case d.Backup != "":
			fmt.Fprintf(w, "- updated: %s (backup %s)\n", rel, core.RelPath(r.Vault, d.Backup))
		default:
			fmt.Fprintf(w, "- updated: %s\n", rel)
		}
	}

	renamed := len(r.Renames) - len(r.RenameFailures())
	changed := len(r.ChangedDocuments())
	failed := len(r.RenameFailures()) + len(r.DocumentFailures())
	if r.DryRun {
		fmt.Fprintf(w, "%ssummary: would rename %d file(s), would update %d document(s), %d failure(s)\n",
			prefix, renamed, changed, failed)
		return
	}
	fmt.Fprintf(w, "summary: renamed %d file(s), updated %d document(s), %d failure(s)\n", renamed, changed, failed)
}

// --- CSF output ---

type embedJSON struct {
	Path      string `json:"path"`
	Converted int    `json:"converted"`
	DryRun    bool   `json:"dry_run"`
}

func printEmbedText(w io.Writer, path string, n int, dryRun bool) {
	switch {
	case n == 0:
		fmt.Fprintf(w, "%s: no embeds to convert\n", path)
	case dryRun:
		fmt.Fprintf(w, "%swould convert %d embed(s) in %s\n", dryRunPrefix, n, path)
	default:
		fmt.Fprintf(w, "converted %d embed(s) in %s\n", n, path)
	}
}

type attachmentJSON struct {
	Name  string `json:"name"`
	Path  string `json:"path,omitempty"`
	Found bool   `json:"found"`
}

func findAttachments(names, roots []string) []attachmentJSON {
	out := make([]attachmentJSON, 0, len(names))
	for _, n := range names {
		p, ok := csf.FindLocalFile(n, roots)
		out = append(out, attachmentJSON{Name: n, Path: p, Found: ok})
	}
	return out
}

func printAttachmentsText(w io.Writer, atts []attachmentJSON) {
	if len(atts) == 0 {
		fmt.Fprintln(w, "No attachments referenced.")
		return
	}
	fmt.Fprintln(w, "attachments:")
	for _, a := range atts {
		if a.Found {
			fmt.Fprintf(w, "- %s: %s\n", a.Name, a.Path)
		} else {
			fmt.Fprintf(w, "- %s: (missing)\n", a.Name)
		}
	}
}

// --- Publish output ---

type publishJSONAttachment struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type publishJSON struct {
	PageID      string                  `json:"page_id"`
	PageURL     string                  `json:"page_url"`
	Title       string                  `json:"title"`
	Created     bool                    `json:"created"`
	Version     int                     `json:"version"`
	Attachments []publishJSONAttachment `json:"attachments"`
	Missing     []string                `json:"missing"`
}

func toPublishJSON(r *publish.Result) publishJSON {
	out := publishJSON{
		PageID:      r.PageID,
		PageURL:     r.PageURL,
		Title:       r.Title,
		Created:     r.Created,
		Version:     r.Version,
		Attachments: make([]publishJSONAttachment, 0, len(r.Attachments)),
		Missing:     r.Missing,
	}
	if out.Missing == nil {
		out.Missing = []string{}
	}
	for _, a := range r.Attachments {
		out.Attachments = append(out.Attachments, publishJSONAttachment{
			Name:   a.Name,
			Path:   a.Path,
			Status: string(a.Status),
			Error:  errString(a.Err),
		})
	}
	return out
}

func printPublishText(w io.Writer, r *publish.Result) {
	action := "updated"
	if r.Created {
		action = "created"
	}
	fmt.Fprintf(w, "page %s: %s (id %s, version %d)\n", action, r.Title, r.PageID, r.Version)
	for _, a := range r.Attachments {
		if a.Err != nil {
			fmt.Fprintf(w, "- %s: %s: %v\n", a.Name, a.Status, a.Err)
			continue
		}
		fmt.Fprintf(w, "- %s: %s\n", a.Name, a.Status)
	}
	for _, m := range r.Missing {
		fmt.Fprintf(w, "- %s: missing locally\n", m)
	}
	fmt.Fprintf(w, "done. uploaded: %d, updated: %d, unchanged: %d, failed: %d, missing: %d\n",
		r.Count(publish.StatusUploaded), r.Count(publish.StatusUpdated),
		r.Count(publish.StatusUnchanged), r.Count(publish.StatusFailed), len(r.Missing))
	fmt.Fprintf(w, "page URL: %s\n", r.PageURL)
}

// --- History output ---

func printHistoryText(w io.Writer, runs []ledger.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-7s %-5s renames=%d/%d documents=%d/%d  %s  %s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Kind, r.Mode,
			r.Renames, r.RenameFailures, r.Documents, r.DocumentFailures, r.Target, r.ID)
	}
}
