package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/ryotapoi/csfpub/internal/confluence"
	"github.com/ryotapoi/csfpub/internal/core"
	"github.com/ryotapoi/csfpub/internal/publish"
)

// fakeConverter writes <stem>.csf next to the input, copying the note body
// into a paragraph so leftover embeds survive like they do with md2conf.
type fakeConverter struct {
	calls [][]string
	err   error
}

func (f *fakeConverter) Run(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return []byte("converter exploded"), f.err
	}
	input := args[0]
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	out := "<p>" + strings.TrimSpace(string(data)) + "</p>"
	return nil, os.WriteFile(filepath.Join(dir, stem+".csf"), []byte(out), 0o644)
}

type recordingAPI struct {
	body    string
	uploads []string
}

func (a *recordingAPI) GetPage(context.Context, string) (*confluence.Page, error) {
	return &confluence.Page{ID: "100"}, nil
}
func (a *recordingAPI) FindPages(context.Context, string, string) ([]confluence.Page, error) {
	return nil, nil
}
func (a *recordingAPI) CreatePage(_ context.Context, in confluence.PageInput) (*confluence.Page, error) {
	a.body = in.Body
	return &confluence.Page{ID: "200", Title: in.Title}, nil
}
func (a *recordingAPI) UpdatePage(_ context.Context, id string, in confluence.PageInput) (*confluence.Page, error) {
	return &confluence.Page{ID: id}, nil
}
func (a *recordingAPI) FindAttachment(context.Context, string, string) (*confluence.Attachment, error) {
	return nil, nil
}
func (a *recordingAPI) UploadAttachment(_ context.Context, _, _, name string) (*confluence.Attachment, error) {
	a.uploads = append(a.uploads, name)
	return &confluence.Attachment{ID: "a"}, nil
}
func (a *recordingAPI) UpdateAttachmentData(context.Context, string, string, string, string) (*confluence.Attachment, error) {
	return &confluence.Attachment{}, nil
}
func (a *recordingAPI) PageURL(id string) string { return "https://wiki/" + id }

func writeNote(t *testing.T) (dir, note string) {
	t.Helper()
	dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Pasted image 1.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	note = filepath.Join(dir, "Report.md")
	if err := os.WriteFile(note, []byte("![[Pasted image 1.png|680]]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, note
}

func TestRun(t *testing.T) {
	dir, note := writeNote(t)
	conv := &fakeConverter{}
	api := &recordingAPI{}
	cfg := core.DefaultConfig()
	cfg.Confluence.Domain = "wiki.example.com"

	res, err := Run(context.Background(), Options{
		NotePath: note,
		Config:   cfg,
		Publish:  publish.Options{ParentID: "100", SpaceKey: "DOC"},
		API:      api,
		Runner:   conv,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FixErr != nil || res.Fix == nil || len(res.Fix.Renames) != 1 {
		t.Errorf("fix stage = %+v, %v", res.Fix, res.FixErr)
	}
	if _, err := os.Stat(filepath.Join(dir, "Pasted-image-1.png")); err != nil {
		t.Errorf("image not renamed: %v", err)
	}

	if len(conv.calls) != 1 {
		t.Fatalf("converter calls = %d", len(conv.calls))
	}
	want := []string{"md2conf", note, "--local", "--domain", "wiki.example.com"}
	if strings.Join(conv.calls[0], " ") != strings.Join(want, " ") {
		t.Errorf("converter call = %v, want %v", conv.calls[0], want)
	}

	if res.CSFPath != filepath.Join(dir, "Report.csf") || res.Converted != 1 {
		t.Errorf("csf = %q, converted = %d", res.CSFPath, res.Converted)
	}
	wantBody := `<p><ac:image ac:width="680"><ri:attachment ri:filename="Pasted-image-1.png"/></ac:image></p>`
	if api.body != wantBody {
		t.Errorf("published body = %q, want %q", api.body, wantBody)
	}
	if len(api.uploads) != 1 || api.uploads[0] != "Pasted-image-1.png" {
		t.Errorf("uploads = %v", api.uploads)
	}
	if res.Publish == nil || res.Publish.PageID != "200" || res.Publish.Title != "Report" {
		t.Errorf("publish result = %+v", res.Publish)
	}
}

func TestRunConverterFailure(t *testing.T) {
	_, note := writeNote(t)
	api := &recordingAPI{}

	_, err := Run(context.Background(), Options{
		NotePath: note,
		Config:   core.DefaultConfig(),
		API:      api,
		Runner:   &fakeConverter{err: errors.New("exit status 1")},
		SkipFix:  true,
	})
	if err == nil {
		t.Fatal("expected converter error")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Errorf("error category: %v", err)
	}
	if api.body != "" {
		t.Error("published despite converter failure")
	}
}

func TestRunInvalidNote(t *testing.T) {
	_, err := Run(context.Background(), Options{NotePath: t.TempDir(), Config: core.DefaultConfig()})
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Errorf("directory as note: %v", err)
	}
}

func TestExpandArgs(t *testing.T) {
	got := ExpandArgs([]string{"{input}", "--domain={domain}", "plain"}, "/v/a.md", "wiki")
	want := []string{"/v/a.md", "--domain=wiki", "plain"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("ExpandArgs = %v, want %v", got, want)
	}
}

func TestRunFrontMatterTitle(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "q3.md")
	content := "---\ntitle: Quarterly Report\n---\nbody\n"
	if err := os.WriteFile(note, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := core.DefaultConfig()
	cfg.Confluence.Domain = "wiki.example.com"

	res, err := Run(context.Background(), Options{
		NotePath: note,
		Config:   cfg,
		Publish:  publish.Options{ParentID: "100", SpaceKey: "DOC"},
		API:      &recordingAPI{},
		Runner:   &fakeConverter{},
		SkipFix:  true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Publish.Title != "Quarterly Report" {
		t.Errorf("title = %q, want Quarterly Report", res.Publish.Title)
	}
}

func TestNoteTitle(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"front matter", "---\ntitle: \"  Plan  \"\ntags: [a]\n---\n# x\n", "Plan"},
		{"no front matter", "# Heading\n", ""},
		{"no title key", "---\ntags: [a]\n---\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".md")
			if err := os.WriteFile(p, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			got, err := noteTitle(p)
			if err != nil {
				t.Fatalf("noteTitle: %v", err)
			}
			if got != tt.want {
				t.Errorf("noteTitle = %q, want %q", got, tt.want)
			}
		})
	}
}
