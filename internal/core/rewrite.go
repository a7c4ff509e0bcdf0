package core

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var (
	// ![alt](path); groups: prefix, path, closing paren.
	inlineImagePattern = regexp.MustCompile(`(!\[[^\]]*\]\()([^)]+)(\))`)
	// [[target#anchor|alias]] with optional leading "!"; groups: opener,
	// target, anchor, alias, closer.
	wikiLinkPattern = regexp.MustCompile(`(!?\[\[)([^\]|#]+)(#[^\]|]+)?(\|[^\]]+)?(\]\])`)
)

// Lookup maps a lowercased old asset basename, and its %20-encoded form, to
// the new basename. An empty value pins the name: references to it are left
// as written.
type Lookup map[string]string

// NewLookup builds the basename lookup for a rename mapping. Literal
// basenames take precedence over %20-encoded variants, and among equal keys
// the lexically first old path wins.
func NewLookup(m RenameMap) Lookup {
	l := make(Lookup, 2*len(m))
	keys := m.SortedKeys()
	for _, old := range keys {
		key := strings.ToLower(filepath.Base(old))
		if _, taken := l[key]; !taken {
			l[key] = filepath.Base(m[old])
		}
	}
	for _, old := range keys {
		key := strings.ToLower(strings.ReplaceAll(filepath.Base(old), " ", "%20"))
		if _, taken := l[key]; !taken {
			l[key] = filepath.Base(m[old])
		}
	}
	return l
}

// Pin marks the basenames of paths as unchanged, overriding any mapping for
// them. Used for assets whose rename failed.
func (l Lookup) Pin(paths []string) {
	for _, p := range paths {
		name := filepath.Base(p)
		l[strings.ToLower(name)] = ""
		l[strings.ToLower(strings.ReplaceAll(name, " ", "%20"))] = ""
	}
}

func (l Lookup) find(filename string) (string, bool) {
	lower := strings.ToLower(filename)
	if v, ok := l[lower]; ok {
		return v, true
	}
	if decoded := strings.ReplaceAll(lower, "%20", " "); decoded != lower {
		if v, ok := l[decoded]; ok {
			return v, true
		}
	}
	return "", false
}

// RewriteReferences rewrites the filename segment of every image reference
// in content: Markdown inline images first, then wiki links and embeds.
// Content without a reference that resolves to a new name is returned
// unchanged.
func RewriteReferences(content string, lookup Lookup, exts ExtensionSet) string {
	content = replaceSubmatches(inlineImagePattern, content, func(g []string) string {
		return g[1] + rewriteInlinePath(g[2], lookup, exts) + g[3]
	})
	content = replaceSubmatches(wikiLinkPattern, content, func(g []string) string {
		return rewriteWikiLink(g, lookup, exts)
	})
	return content
}

// rewriteInlinePath rewrites the path part of ![alt](path). Quoting,
// directory prefix, separators and #fragment are kept as written.
func rewriteInlinePath(raw string, lookup Lookup, exts ExtensionSet) string {
	lead, p, trail := splitSurroundingSpace(raw)
	open, p, close := stripQuotes(p)

	var frag string
	if idx := strings.IndexByte(p, '#'); idx >= 0 {
		p, frag = p[:idx], p[idx:]
	}
	dir, filename := splitLastSegment(p)
	newName := resolveFilename(filename, lookup, exts)
	if newName == "" || newName == filename {
		return raw
	}
	return lead + open + dir + newName + frag + close + trail
}

// rewriteWikiLink rewrites the target of [[...]] or ![[...]]. Plain links
// are only touched when they name a renamed image; embeds are touched when
// they name an image.
func rewriteWikiLink(g []string, lookup Lookup, exts ExtensionSet) string {
	opener, target, anchor, alias, closer := g[1], g[2], g[3], g[4], g[5]
	lead, t, trail := splitSurroundingSpace(target)
	dir, filename := splitLastSegment(t)

	_, known := lookup.find(filename)
	isImage := exts.Has(filename)
	if strings.HasPrefix(opener, "!") {
		if !isImage && !known {
			return g[0]
		}
	} else if !known || !isImage {
		return g[0]
	}

	newName := resolveFilename(filename, lookup, exts)
	if newName == "" || newName == filename {
		return g[0]
	}
	return opener + lead + dir + newName + trail + anchor + alias + closer
}

// resolveFilename returns the new name for filename, or "" when it stays.
// A pinned name is never normalized.
func resolveFilename(filename string, lookup Lookup, exts ExtensionSet) string {
	if v, ok := lookup.find(filename); ok {
		return v
	}
	if exts.Has(filename) && needsNormalize(filename) {
		return NormalizeFilename(filename)
	}
	return ""
}

// splitLastSegment splits p after its last '/' or '\'.
func splitLastSegment(p string) (dir, name string) {
	idx := strings.LastIndexAny(p, `/\`)
	return p[:idx+1], p[idx+1:]
}

func splitSurroundingSpace(s string) (lead, core, trail string) {
	core = strings.TrimLeftFunc(s, unicode.IsSpace)
	lead = s[:len(s)-len(core)]
	trimmed := strings.TrimRightFunc(core, unicode.IsSpace)
	trail = core[len(trimmed):]
	return lead, trimmed, trail
}

// stripQuotes removes a matching pair of '"', '\'' or '<' '>' around s.
func stripQuotes(s string) (open, inner, close string) {
	if len(s) < 2 {
		return "", s, ""
	}
	first, last := s[0], s[len(s)-1]
	switch {
	case (first == '"' || first == '\'') && last == first,
		first == '<' && last == '>':
		return s[:1], s[1 : len(s)-1], s[len(s)-1:]
	}
	return "", s, ""
}

// replaceSubmatches is regexp.ReplaceAllStringFunc with access to groups.
// Unmatched optional groups are "".
func replaceSubmatches(re *regexp.Regexp, s string, fn func(groups []string) string) string {
	locs := re.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, loc := range locs {
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = s[loc[2*i]:loc[2*i+1]]
			}
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(fn(groups))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}
