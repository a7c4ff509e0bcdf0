// Package csf post-processes Confluence Storage Format documents produced by
// an external Markdown converter.
package csf

import (
	"html"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// EmbedExtensions are the attachment types an Obsidian embed is converted for.
var EmbedExtensions = []string{"png", "jpg", "jpeg", "gif", "bmp", "svg", "pdf"}

var (
	// ![[file.ext]] or ![[file.ext|width]]; groups: target, width.
	embedPattern = regexp.MustCompile(`(?i)!\[\[([^|\]]+\.(?:` + strings.Join(EmbedExtensions, "|") + `))(?:\|(\d+))?\]\]`)

	attachmentPattern = regexp.MustCompile(`(?i)ri:attachment\s+ri:filename="([^"]+)"`)
)

// ConvertEmbeds replaces Obsidian image embeds left in csf by the converter
// with Confluence image macros and returns the number replaced. A width
// alias becomes ac:width; directory prefixes are dropped because
// attachments are flat per page.
func ConvertEmbeds(csf string) (string, int) {
	n := 0
	out := embedPattern.ReplaceAllStringFunc(csf, func(m string) string {
		g := embedPattern.FindStringSubmatch(m)
		name := path.Base(strings.ReplaceAll(strings.TrimSpace(g[1]), `\`, "/"))
		n++
		attachment := `<ri:attachment ri:filename="` + html.EscapeString(name) + `"/>`
		if g[2] != "" {
			return `<ac:image ac:width="` + g[2] + `">` + attachment + `</ac:image>`
		}
		return `<ac:image>` + attachment + `</ac:image>`
	})
	return out, n
}

// AttachmentNames returns the distinct attachment filenames referenced by
// csf, sorted.
func AttachmentNames(csf string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range attachmentPattern.FindAllStringSubmatch(csf, -1) {
		name := strings.TrimSpace(html.UnescapeString(m[1]))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindLocalFile searches roots in order for a file whose name matches name
// case-insensitively, also trying name with "%20" decoded to a space.
// Within a root the walk is lexical, so the result is deterministic.
func FindLocalFile(name string, roots []string) (string, bool) {
	candidates := []string{strings.ToLower(name)}
	if decoded := strings.ReplaceAll(name, "%20", " "); decoded != name {
		candidates = append(candidates, strings.ToLower(decoded))
	}
	for _, root := range roots {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}
		for _, c := range candidates {
			if p, ok := findInRoot(root, c); ok {
				return p, true
			}
		}
	}
	return "", false
}

func findInRoot(root, lowerName string) (string, bool) {
	var found string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.ToLower(d.Name()) == lowerName {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	return found, found != ""
}
