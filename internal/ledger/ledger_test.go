package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTest(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestOpenCreatesFile(t *testing.T) {
	root := t.TempDir()
	l, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if want := filepath.Join(root, ".csfpub", "ledger.sqlite"); l.Path() != want {
		t.Errorf("Path = %q, want %q", l.Path(), want)
	}

	// Reopening keeps existing data.
	if _, err := l.RecordRun(Run{Kind: "fix", Mode: "apply"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	again, err := Open(root)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	runs, err := again.Runs(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("runs after reopen = %d, want 1", len(runs))
	}
}

func TestRuns(t *testing.T) {
	l := openTest(t)
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	first, err := l.RecordRun(Run{Kind: "fix", Mode: "apply", Target: "/vault", StartedAt: base, Renames: 3, Documents: 2})
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if _, err := uuid.Parse(first.ID); err != nil {
		t.Errorf("run id %q is not a uuid: %v", first.ID, err)
	}
	if _, err := l.RecordRun(Run{Kind: "publish", Mode: "apply", StartedAt: base.Add(time.Hour), Documents: 4, DocumentFailures: 1}); err != nil {
		t.Fatal(err)
	}

	runs, err := l.Runs(0)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].Kind != "publish" || runs[1].Kind != "fix" {
		t.Errorf("order = %s, %s; want newest first", runs[0].Kind, runs[1].Kind)
	}
	if got := runs[1]; got.ID != first.ID || got.Renames != 3 || got.Documents != 2 || got.Target != "/vault" || !got.StartedAt.Equal(base) {
		t.Errorf("stored run = %+v", got)
	}

	limited, err := l.Runs(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("Runs(1) = %d rows", len(limited))
	}
}

func TestPages(t *testing.T) {
	l := openTest(t)

	p, err := l.Page("DOC", "100", "Title")
	if err != nil || p != nil {
		t.Fatalf("Page on empty ledger = %+v, %v", p, err)
	}
	if err := l.PutPage(PageRecord{SpaceKey: "DOC", ParentID: "100", Title: "Title", PageID: "7", Version: 1}); err != nil {
		t.Fatal(err)
	}
	if err := l.PutPage(PageRecord{SpaceKey: "DOC", ParentID: "100", Title: "Title", PageID: "7", Version: 2}); err != nil {
		t.Fatal(err)
	}
	p, err = l.Page("DOC", "100", "Title")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.PageID != "7" || p.Version != 2 {
		t.Errorf("Page = %+v", p)
	}
	if other, _ := l.Page("DOC", "200", "Title"); other != nil {
		t.Errorf("page under another parent = %+v", other)
	}
}

func TestAttachments(t *testing.T) {
	l := openTest(t)

	if a, err := l.Attachment("7", "a.png"); err != nil || a != nil {
		t.Fatalf("Attachment on empty ledger = %+v, %v", a, err)
	}
	if err := l.PutAttachment(AttachmentRecord{PageID: "7", Filename: "a.png", SHA256: "aa", AttachmentID: "att1"}); err != nil {
		t.Fatal(err)
	}
	if err := l.PutAttachment(AttachmentRecord{PageID: "7", Filename: "a.png", SHA256: "bb", AttachmentID: "att1"}); err != nil {
		t.Fatal(err)
	}
	a, err := l.Attachment("7", "a.png")
	if err != nil {
		t.Fatal(err)
	}
	if a == nil || a.SHA256 != "bb" || a.AttachmentID != "att1" || a.UploadedAt.IsZero() {
		t.Errorf("Attachment = %+v", a)
	}
}
