package core

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func fixtureVault(t *testing.T) string {
	t.Helper()
	return writeVault(t, map[string]string{
		"Pasted image 1.png":     "png",
		"Pasted-image-1.png":     "existing",
		"assets/My Photo.JPG":    "jpg",
		"assets/fine.png":        "fine",
		"assets/Screen Shot.gif": "gif",
		"Notes Page.md":          "# Notes\n",
		"daily.md": "![[Pasted image 1.png|300]]\n" +
			"![alt](assets/My Photo.JPG#frag)\n" +
			"see [[Notes Page]]\n",
		"sub/gallery.md": "![x](../assets/My%20Photo.JPG)\n![[fine.png]]\n![[Screen Shot.gif]]\n",
	})
}

func TestFixDryRun(t *testing.T) {
	vault := fixtureVault(t)
	before := listVault(t, vault)
	beforeDaily := readFile(t, filepath.Join(vault, "daily.md"))

	result, err := Fix(vault, FixOptions{})
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if !result.DryRun {
		t.Error("zero options should be a dry run")
	}
	if len(result.Renames) != 3 {
		t.Errorf("renames = %d, want 3: %+v", len(result.Renames), result.Renames)
	}
	if got := len(result.ChangedDocuments()); got != 2 {
		t.Errorf("changed documents = %d, want 2", got)
	}
	if after := listVault(t, vault); !equalStrings(before, after) {
		t.Errorf("dry run changed the vault:\n before %v\n after  %v", before, after)
	}
	if got := readFile(t, filepath.Join(vault, "daily.md")); got != beforeDaily {
		t.Errorf("dry run modified daily.md: %q", got)
	}
	if fileExists(filepath.Join(vault, DataDirName)) {
		t.Error("dry run created the data directory")
	}
}

func TestFixApply(t *testing.T) {
	vault := fixtureVault(t)

	result, err := Fix(vault, FixOptions{Apply: true})
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if n := len(result.RenameFailures()); n != 0 {
		t.Errorf("rename failures: %+v", result.RenameFailures())
	}
	if n := len(result.DocumentFailures()); n != 0 {
		t.Errorf("document failures: %+v", result.DocumentFailures())
	}

	want := []string{
		"Notes Page.md",
		"Pasted-image-1-1.png",
		"Pasted-image-1.png",
		"assets/My-Photo.JPG",
		"assets/Screen-Shot.gif",
		"assets/fine.png",
		"daily.md",
		"daily.md.bak",
		"sub/gallery.md",
		"sub/gallery.md.bak",
	}
	if got := listVault(t, vault); !equalStrings(got, want) {
		t.Errorf("vault after apply:\n got  %v\n want %v", got, want)
	}

	daily := readFile(t, filepath.Join(vault, "daily.md"))
	wantDaily := "![[Pasted-image-1-1.png|300]]\n" +
		"![alt](assets/My-Photo.JPG#frag)\n" +
		"see [[Notes Page]]\n"
	if daily != wantDaily {
		t.Errorf("daily.md = %q, want %q", daily, wantDaily)
	}
	if got := readFile(t, filepath.Join(vault, "Pasted-image-1.png")); got != "existing" {
		t.Errorf("existing file clobbered: %q", got)
	}
	if got := readFile(t, filepath.Join(vault, "sub", "gallery.md")); got != "![x](../assets/My-Photo.JPG)\n![[fine.png]]\n![[Screen-Shot.gif]]\n" {
		t.Errorf("sub/gallery.md = %q", got)
	}
	if fileExists(filepath.Join(vault, DataDirName, lockFileName)) {
		t.Error("lock not released")
	}
}

var embedTarget = regexp.MustCompile(`!\[\[([^\]|#]+)`)

func TestFixApplyReferencesResolve(t *testing.T) {
	vault := writeVault(t, map[string]string{
		"a b.png":   "1",
		"a  b.png":  "2",
		"c%20d.gif": "3",
		"note.md":   "![[a b.png]] ![[a  b.png]] ![[c%20d.gif]] ![[c d.gif]]\n",
	})

	if _, err := Fix(vault, FixOptions{Apply: true}); err != nil {
		t.Fatalf("Fix: %v", err)
	}
	content := readFile(t, filepath.Join(vault, "note.md"))
	matches := embedTarget.FindAllStringSubmatch(content, -1)
	if len(matches) != 4 {
		t.Fatalf("embeds = %d, want 4 in %q", len(matches), content)
	}
	for _, m := range matches {
		if strings.Contains(m[1], " ") {
			t.Errorf("reference still has a space: %q", m[1])
		}
		if _, err := os.Stat(filepath.Join(vault, m[1])); err != nil {
			t.Errorf("reference %q does not resolve: %v", m[1], err)
		}
	}
}

func TestFixExtensionsOverride(t *testing.T) {
	vault := writeVault(t, map[string]string{
		"a b.png": "1",
		"c d.gif": "2",
	})
	result, err := Fix(vault, FixOptions{ImageExtensions: NewExtensionSet([]string{".gif"})})
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if len(result.Renames) != 1 || filepath.Base(result.Renames[0].Old) != "c d.gif" {
		t.Errorf("renames = %+v, want only c d.gif", result.Renames)
	}
	if !equalStrings(result.ImageExtensions, []string{".gif"}) {
		t.Errorf("ImageExtensions = %v", result.ImageExtensions)
	}
}

func TestFixInvalidVault(t *testing.T) {
	_, err := Fix(filepath.Join(t.TempDir(), "missing"), FixOptions{})
	if err == nil {
		t.Fatal("expected error for missing vault")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Errorf("error category: %v", err)
	}
}

func TestFixLocked(t *testing.T) {
	vault := fixtureVault(t)
	lock, err := AcquireLock(vault)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	if _, err := Fix(vault, FixOptions{Apply: true}); err == nil {
		t.Fatal("apply should fail while the vault is locked")
	}
	if !fileExists(filepath.Join(vault, "Pasted image 1.png")) {
		t.Error("locked apply renamed files")
	}
	// Dry runs do not take the lock.
	if _, err := Fix(vault, FixOptions{}); err != nil {
		t.Errorf("dry run under lock: %v", err)
	}
}

func TestFixConfigFromVault(t *testing.T) {
	vault := writeVault(t, map[string]string{
		"templates/t b.png": "1",
		"notes/n b.png":     "2",
		ConfigFileName:      "exclude_paths:\n  - \"templates/*\"\n",
	})
	result, err := Fix(vault, FixOptions{})
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if len(result.Renames) != 1 || RelPath(vault, result.Renames[0].Old) != "notes/n b.png" {
		t.Errorf("renames = %+v", result.Renames)
	}
}

func TestAppliedRenamesPinsFailures(t *testing.T) {
	vault := writeVault(t, map[string]string{
		"img/My Photo.png": "1",
		"ok b.png":         "2",
		"note.md":          "![[My Photo.png]]\n![x](img/My%20Photo.png)\n![[ok b.png]]\n",
	})
	mapping, err := PlanRenames(vault, PlanOptions{})
	if err != nil {
		t.Fatalf("PlanRenames: %v", err)
	}
	if len(mapping) != 2 {
		t.Fatalf("len(mapping) = %d, want 2", len(mapping))
	}
	// The source vanishes between planning and execution.
	if err := os.Remove(filepath.Join(vault, "img", "My Photo.png")); err != nil {
		t.Fatal(err)
	}

	outcomes := ExecuteRenames(mapping, false, nil)
	applied, failed := appliedRenames(outcomes)
	if len(applied) != 1 || len(failed) != 1 {
		t.Fatalf("applied = %v, failed = %v", applied, failed)
	}
	if want := filepath.Join(vault, "img", "My Photo.png"); failed[0] != want {
		t.Errorf("failed = %v, want %s", failed, want)
	}

	if _, err := UpdateDocuments(vault, applied, UpdateOptions{Pinned: failed}); err != nil {
		t.Fatalf("UpdateDocuments: %v", err)
	}
	want := "![[My Photo.png]]\n![x](img/My%20Photo.png)\n![[ok-b.png]]\n"
	if got := readFile(t, filepath.Join(vault, "note.md")); got != want {
		t.Errorf("note.md = %q, want %q", got, want)
	}
	if !fileExists(filepath.Join(vault, "ok-b.png")) {
		t.Error("ok-b.png missing after apply")
	}
}
