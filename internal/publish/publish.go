// Package publish uploads a storage-format page and the attachments it
// references to Confluence.
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/ryotapoi/csfpub/internal/confluence"
	"github.com/ryotapoi/csfpub/internal/csf"
	"github.com/ryotapoi/csfpub/internal/ledger"
	"github.com/ryotapoi/csfpub/internal/logging"
)

// API is the subset of the Confluence client Publish uses.
type API interface {
	GetPage(ctx context.Context, id string) (*confluence.Page, error)
	FindPages(ctx context.Context, title, spaceKey string) ([]confluence.Page, error)
	CreatePage(ctx context.Context, in confluence.PageInput) (*confluence.Page, error)
	UpdatePage(ctx context.Context, id string, in confluence.PageInput) (*confluence.Page, error)
	FindAttachment(ctx context.Context, pageID, name string) (*confluence.Attachment, error)
	UploadAttachment(ctx context.Context, pageID, path, name string) (*confluence.Attachment, error)
	UpdateAttachmentData(ctx context.Context, pageID, attID, path, name string) (*confluence.Attachment, error)
	PageURL(pageID string) string
}

// Store remembers published pages and attachment hashes. *ledger.Ledger
// implements it.
type Store interface {
	PutPage(p ledger.PageRecord) error
	Attachment(pageID, filename string) (*ledger.AttachmentRecord, error)
	PutAttachment(a ledger.AttachmentRecord) error
	RecordRun(r ledger.Run) (ledger.Run, error)
}

var errEmptyCSF = errors.New("document is empty")

// Options describes one publish.
type Options struct {
	CSFPath  string
	Title    string // defaults to the CSF file stem
	ParentID string
	SpaceKey string
	// SearchRoots are searched for attachment files; defaults to the CSF's
	// directory.
	SearchRoots []string
	// UpdateIfExists updates a same-titled page under ParentID instead of
	// creating a new one.
	UpdateIfExists bool
	// Force re-uploads attachments whose content hash is already recorded.
	Force  bool
	Logger logging.Logger
}

// Validate reports missing required options.
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.CSFPath, validation.Required),
		validation.Field(&o.ParentID, validation.Required),
		validation.Field(&o.SpaceKey, validation.Required),
	)
}

// AttachmentStatus is what happened to one referenced attachment.
type AttachmentStatus string

const (
	StatusUploaded  AttachmentStatus = "uploaded"
	StatusUpdated   AttachmentStatus = "updated"
	StatusUnchanged AttachmentStatus = "unchanged"
	StatusFailed    AttachmentStatus = "failed"
)

// AttachmentOutcome reports one attachment.
type AttachmentOutcome struct {
	Name   string
	Path   string
	Status AttachmentStatus
	Err    error
}

// Result reports a publish.
type Result struct {
	PageID      string
	PageURL     string
	Title       string
	Created     bool
	Version     int
	Attachments []AttachmentOutcome
	Missing     []string
}

// Count returns the number of attachments with status s.
func (r *Result) Count(s AttachmentStatus) int {
	n := 0
	for _, a := range r.Attachments {
		if a.Status == s {
			n++
		}
	}
	return n
}

// Publish creates or updates the page and then syncs its attachments.
// Attachment failures are reported on the result; only failures to read the
// document, reach the parent, or write the page are returned as errors.
// store may be nil.
func Publish(ctx context.Context, api API, store Store, opts Options) (*Result, error) {
	log := logging.OrNop(opts.Logger)
	if err := opts.Validate(); err != nil {
		return nil, invalidOptions(err)
	}

	data, err := os.ReadFile(opts.CSFPath)
	if err != nil {
		return nil, invalidCSF(err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, invalidCSF(fmt.Errorf("%s: %w", opts.CSFPath, errEmptyCSF))
	}
	if !utf8.Valid(data) {
		return nil, invalidCSF(fmt.Errorf("%s: not valid UTF-8", opts.CSFPath))
	}
	body := string(data)

	title := opts.Title
	if title == "" {
		base := filepath.Base(opts.CSFPath)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	roots := opts.SearchRoots
	if len(roots) == 0 {
		roots = []string{filepath.Dir(opts.CSFPath)}
	}

	if _, err := api.GetPage(ctx, opts.ParentID); err != nil {
		return nil, publishFailed(err, "parent page is not reachable")
	}

	page, created, err := upsertPage(ctx, api, opts, title, body, log)
	if err != nil {
		return nil, err
	}
	result := &Result{
		PageID:  page.ID,
		PageURL: api.PageURL(page.ID),
		Title:   title,
		Created: created,
		Version: page.VersionNumber(),
	}
	if store != nil {
		if err := store.PutPage(ledger.PageRecord{
			SpaceKey: opts.SpaceKey,
			ParentID: opts.ParentID,
			Title:    title,
			PageID:   page.ID,
			Version:  result.Version,
		}); err != nil {
			log.Warn("ledger page record failed", "page_id", page.ID, "error", err)
		}
	}

	for _, name := range csf.AttachmentNames(body) {
		p, ok := csf.FindLocalFile(name, roots)
		if !ok {
			result.Missing = append(result.Missing, name)
			log.Warn("attachment file not found", "name", name)
			continue
		}
		out := syncAttachment(ctx, api, store, page.ID, name, p, opts.Force, log)
		result.Attachments = append(result.Attachments, out)
	}

	if store != nil {
		_, err := store.RecordRun(ledger.Run{
			Kind:             "publish",
			Mode:             "apply",
			Target:           page.ID,
			Documents:        result.Count(StatusUploaded) + result.Count(StatusUpdated),
			DocumentFailures: result.Count(StatusFailed),
		})
		if err != nil {
			log.Warn("ledger run record failed", "error", err)
		}
	}
	return result, nil
}

// upsertPage updates the first same-titled page under the parent when asked
// to, and otherwise creates a new page under the parent. A failed lookup
// falls back to creating.
func upsertPage(ctx context.Context, api API, opts Options, title, body string, log logging.Logger) (*confluence.Page, bool, error) {
	if opts.UpdateIfExists {
		pages, err := api.FindPages(ctx, title, opts.SpaceKey)
		if err != nil {
			log.Warn("page lookup failed; creating a new page", "title", title, "error", err)
		}
		for i := range pages {
			existing := &pages[i]
			if !existing.HasAncestor(opts.ParentID) {
				continue
			}
			next := existing.VersionNumber() + 1
			updated, err := api.UpdatePage(ctx, existing.ID, confluence.PageInput{
				Title:    title,
				SpaceKey: opts.SpaceKey,
				Version:  next,
				Body:     body,
			})
			if err != nil {
				return nil, false, publishFailed(err, "update page")
			}
			if updated.Version == nil {
				updated.Version = &confluence.Version{Number: next}
			}
			log.Info("page updated", "page_id", updated.ID, "version", next)
			return updated, false, nil
		}
	}

	created, err := api.CreatePage(ctx, confluence.PageInput{
		Title:    title,
		SpaceKey: opts.SpaceKey,
		ParentID: opts.ParentID,
		Body:     body,
	})
	if err != nil {
		return nil, false, publishFailed(err, "create page")
	}
	log.Info("page created", "page_id", created.ID, "parent_id", opts.ParentID)
	return created, true, nil
}

func syncAttachment(ctx context.Context, api API, store Store, pageID, name, path string, force bool, log logging.Logger) AttachmentOutcome {
	out := AttachmentOutcome{Name: name, Path: path}
	sum, err := fileSHA256(path)
	if err != nil {
		out.Status, out.Err = StatusFailed, err
		return out
	}

	if store != nil && !force {
		rec, err := store.Attachment(pageID, name)
		if err != nil {
			log.Warn("ledger attachment lookup failed", "name", name, "error", err)
		} else if rec != nil && rec.SHA256 == sum {
			out.Status = StatusUnchanged
			log.Debug("attachment unchanged", "name", name)
			return out
		}
	}

	existing, err := api.FindAttachment(ctx, pageID, name)
	if err != nil {
		log.Warn("attachment lookup failed; uploading as new", "name", name, "error", err)
		existing = nil
	}

	var att *confluence.Attachment
	if existing != nil && existing.ID != "" {
		att, err = api.UpdateAttachmentData(ctx, pageID, existing.ID, path, name)
		out.Status = StatusUpdated
	} else {
		att, err = api.UploadAttachment(ctx, pageID, path, name)
		out.Status = StatusUploaded
	}
	if err != nil {
		out.Status, out.Err = StatusFailed, err
		log.Warn("attachment upload failed", "name", name, "error", err)
		return out
	}
	log.Debug("attachment sent", "name", name, "status", string(out.Status))

	if store != nil {
		rec := ledger.AttachmentRecord{PageID: pageID, Filename: name, SHA256: sum}
		if att != nil {
			rec.AttachmentID = att.ID
		}
		if err := store.PutAttachment(rec); err != nil {
			log.Warn("ledger attachment record failed", "name", name, "error", err)
		}
	}
	return out
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
