package core

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ryotapoi/csfpub/internal/logging"
)

// BackupSuffix is appended to a document's name for its pre-rewrite copy.
const BackupSuffix = ".bak"

// UpdateOptions controls UpdateDocuments.
type UpdateOptions struct {
	DryRun             bool
	ImageExtensions    ExtensionSet
	DocumentExtensions ExtensionSet
	Encodings          []Encoding
	ExcludePaths       []string
	// Pinned lists asset paths whose names must stay, such as failed
	// renames. References to them are never rewritten.
	Pinned []string
	Logger logging.Logger
}

// DocumentOutcome reports a document that changed, would change, or could
// not be processed.
type DocumentOutcome struct {
	Path     string
	Backup   string // backup written in this run; "" if none
	Encoding string
	Err      error
}

// UpdateDocuments rewrites image references in every document under root
// so they follow m. In dry-run mode nothing is written. Per-document
// failures are recorded on the outcome and do not stop the walk; only a
// failure to walk root itself is returned as an error.
func UpdateDocuments(root string, m RenameMap, opts UpdateOptions) ([]DocumentOutcome, error) {
	log := logging.OrNop(opts.Logger)
	docExts := opts.DocumentExtensions
	if docExts == nil {
		docExts = NewExtensionSet([]string{".md"})
	}
	imgExts := opts.ImageExtensions
	if imgExts == nil {
		imgExts = NewExtensionSet(DefaultImageExtensions)
	}
	encs := opts.Encodings
	if len(encs) == 0 {
		var err error
		if encs, err = LookupEncodings(nil); err != nil {
			return nil, err
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	lookup := NewLookup(m)
	lookup.Pin(opts.Pinned)
	var outcomes []DocumentOutcome
	err = walkFiles(abs, opts.ExcludePaths, func(path string, d fs.DirEntry) error {
		if !docExts.Has(d.Name()) {
			return nil
		}
		out, changed := updateDocument(path, lookup, imgExts, encs, opts.DryRun)
		if out.Err != nil {
			log.Warn("document update failed", "path", path, "error", out.Err)
		} else if changed {
			log.Debug("document rewritten", "path", path, "dry_run", opts.DryRun)
		}
		if changed || out.Err != nil {
			outcomes = append(outcomes, out)
		}
		return nil
	})
	if err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func updateDocument(path string, lookup Lookup, exts ExtensionSet, encs []Encoding, dryRun bool) (DocumentOutcome, bool) {
	out := DocumentOutcome{Path: path}
	info, err := os.Stat(path)
	if err != nil {
		out.Err = err
		return out, false
	}
	perm := info.Mode().Perm()
	original, err := os.ReadFile(path)
	if err != nil {
		out.Err = err
		return out, false
	}
	text, enc, err := decodeWithFallback(original, encs)
	if err != nil {
		out.Err = fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		return out, false
	}
	out.Encoding = enc.Name

	updated := RewriteReferences(text, lookup, exts)
	if updated == text {
		return out, false
	}
	if dryRun {
		return out, true
	}

	data, err := enc.Encode(updated)
	if err != nil {
		out.Err = err
		return out, true
	}
	backup := path + BackupSuffix
	if !fileExists(backup) {
		if err := writeFilePreservePerm(backup, original, perm); err != nil {
			out.Err = fmt.Errorf("write backup: %w", err)
			return out, true
		}
		out.Backup = backup
	}
	if err := writeFileAtomic(path, data, perm); err != nil {
		out.Err = err
	}
	return out, true
}
