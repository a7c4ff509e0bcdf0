package core

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	hyphenRun     = regexp.MustCompile(`-{2,}`)
)

// DefaultImageExtensions is used when neither config nor flags name a set.
var DefaultImageExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".svg", ".webp", ".tiff", ".tif", ".avif",
}

// NormalizeFilename maps a filename with spaces or %20 sequences to its
// hyphenated form: "Pasted image 1.png" → "Pasted-image-1.png".
// It never fails and is idempotent.
func NormalizeFilename(name string) string {
	name = strings.ReplaceAll(name, "%20", " ")
	name = whitespaceRun.ReplaceAllString(name, "-")
	name = hyphenRun.ReplaceAllString(name, "-")
	return strings.Trim(name, "-")
}

// needsNormalize reports whether name carries a space or an encoded space.
func needsNormalize(name string) bool {
	return strings.Contains(name, " ") || strings.Contains(name, "%20")
}

// ExtensionSet holds lowercase, dot-prefixed file extensions.
type ExtensionSet map[string]bool

// NewExtensionSet normalizes entries to ".ext" lowercase form. Blank entries
// are dropped.
func NewExtensionSet(exts []string) ExtensionSet {
	set := make(ExtensionSet, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || e == "." {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}

// ParseExtensionList splits a comma-separated flag value such as
// ".png,jpg, .JPEG" into a set. Returns nil for blank input.
func ParseExtensionList(raw string) ExtensionSet {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	set := NewExtensionSet(strings.Split(raw, ","))
	if len(set) == 0 {
		return nil
	}
	return set
}

// Has reports whether the extension of name is in the set (case-insensitive).
func (s ExtensionSet) Has(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext != "" && s[ext]
}

// Sorted returns the extensions in lexical order.
func (s ExtensionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
