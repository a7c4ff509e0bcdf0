// Package ledger records csfpub run history and the Confluence pages and
// attachments already published, in a SQLite file inside the vault's data
// directory.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	dataDirName = ".csfpub"
	dbFileName  = "ledger.sqlite"
)

// Path returns the ledger location for a vault or publish root.
func Path(root string) string {
	return filepath.Join(root, dataDirName, dbFileName)
}

// Ledger is an open ledger database.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the ledger under root.
func Open(root string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Join(root, dataDirName), 0o755); err != nil {
		return nil, err
	}
	return OpenAt(Path(root))
}

// OpenAt opens the ledger file at path and ensures its schema.
func OpenAt(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &Ledger{db: db, path: path}, nil
}

// Path is the file backing l.
func (l *Ledger) Path() string { return l.path }

// Close closes the database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id                TEXT PRIMARY KEY,
			kind              TEXT NOT NULL,
			mode              TEXT NOT NULL,
			target            TEXT NOT NULL DEFAULT '',
			started_at        INTEGER NOT NULL,
			renames           INTEGER NOT NULL DEFAULT 0,
			rename_failures   INTEGER NOT NULL DEFAULT 0,
			documents         INTEGER NOT NULL DEFAULT 0,
			document_failures INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE TABLE IF NOT EXISTS pages (
			space_key  TEXT NOT NULL,
			parent_id  TEXT NOT NULL,
			title      TEXT NOT NULL,
			page_id    TEXT NOT NULL,
			version    INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (space_key, parent_id, title)
		);`,
		`CREATE TABLE IF NOT EXISTS attachments (
			page_id       TEXT NOT NULL,
			filename      TEXT NOT NULL,
			sha256        TEXT NOT NULL,
			attachment_id TEXT NOT NULL DEFAULT '',
			uploaded_at   INTEGER NOT NULL,
			PRIMARY KEY (page_id, filename)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Run is one recorded fix or publish invocation. For publish runs Documents
// counts attachments sent and DocumentFailures the ones that failed.
type Run struct {
	ID               string    `json:"id"`
	Kind             string    `json:"kind"`
	Mode             string    `json:"mode"`
	Target           string    `json:"target"`
	StartedAt        time.Time `json:"started_at"`
	Renames          int       `json:"renames"`
	RenameFailures   int       `json:"rename_failures"`
	Documents        int       `json:"documents"`
	DocumentFailures int       `json:"document_failures"`
}

// RecordRun stores r, assigning an ID and start time when they are unset,
// and returns the stored value.
func (l *Ledger) RecordRun(r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	r.StartedAt = r.StartedAt.UTC().Truncate(time.Second)
	_, err := l.db.Exec(
		`INSERT INTO runs (id, kind, mode, target, started_at, renames, rename_failures, documents, document_failures)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Kind, r.Mode, r.Target, r.StartedAt.Unix(),
		r.Renames, r.RenameFailures, r.Documents, r.DocumentFailures,
	)
	if err != nil {
		return Run{}, err
	}
	return r, nil
}

// Runs returns the most recent runs first. limit <= 0 returns all.
func (l *Ledger) Runs(limit int) ([]Run, error) {
	q := `SELECT id, kind, mode, target, started_at, renames, rename_failures, documents, document_failures
	      FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started int64
		if err := rows.Scan(&r.ID, &r.Kind, &r.Mode, &r.Target, &started,
			&r.Renames, &r.RenameFailures, &r.Documents, &r.DocumentFailures); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// PageRecord maps a (space, parent, title) triple to the page created for it.
type PageRecord struct {
	SpaceKey string
	ParentID string
	Title    string
	PageID   string
	Version  int
}

// Page returns the recorded page, or nil when none is recorded.
func (l *Ledger) Page(spaceKey, parentID, title string) (*PageRecord, error) {
	p := PageRecord{SpaceKey: spaceKey, ParentID: parentID, Title: title}
	row := l.db.QueryRow(
		`SELECT page_id, version FROM pages WHERE space_key = ? AND parent_id = ? AND title = ?`,
		spaceKey, parentID, title,
	)
	if err := row.Scan(&p.PageID, &p.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// PutPage inserts or replaces a page record.
func (l *Ledger) PutPage(p PageRecord) error {
	_, err := l.db.Exec(
		`INSERT INTO pages (space_key, parent_id, title, page_id, version, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(space_key, parent_id, title) DO UPDATE SET
		   page_id=excluded.page_id,
		   version=excluded.version,
		   updated_at=excluded.updated_at`,
		p.SpaceKey, p.ParentID, p.Title, p.PageID, p.Version, time.Now().Unix(),
	)
	return err
}

// AttachmentRecord is the last uploaded content hash of a page attachment.
type AttachmentRecord struct {
	PageID       string
	Filename     string
	SHA256       string
	AttachmentID string
	UploadedAt   time.Time
}

// Attachment returns the record for filename on pageID, or nil.
func (l *Ledger) Attachment(pageID, filename string) (*AttachmentRecord, error) {
	a := AttachmentRecord{PageID: pageID, Filename: filename}
	var uploaded int64
	row := l.db.QueryRow(
		`SELECT sha256, attachment_id, uploaded_at FROM attachments WHERE page_id = ? AND filename = ?`,
		pageID, filename,
	)
	if err := row.Scan(&a.SHA256, &a.AttachmentID, &uploaded); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.UploadedAt = time.Unix(uploaded, 0).UTC()
	return &a, nil
}

// PutAttachment inserts or replaces an attachment record.
func (l *Ledger) PutAttachment(a AttachmentRecord) error {
	if a.UploadedAt.IsZero() {
		a.UploadedAt = time.Now()
	}
	_, err := l.db.Exec(
		`INSERT INTO attachments (page_id, filename, sha256, attachment_id, uploaded_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(page_id, filename) DO UPDATE SET
		   sha256=excluded.sha256,
		   attachment_id=excluded.attachment_id,
		   uploaded_at=excluded.uploaded_at`,
		a.PageID, a.Filename, a.SHA256, a.AttachmentID, a.UploadedAt.Unix(),
	)
	return err
}
