package core

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolveCollision returns target if nothing exists there, otherwise the first
// "stem-N.ext" sibling (N = 1, 2, ...) that does not exist. Existence is
// checked on disk at call time; callers must not run it concurrently with
// other writers in the same directory.
func ResolveCollision(target string) string {
	return resolveCollision(target, nil)
}

// resolveCollision is ResolveCollision with an extra set of paths claimed
// earlier in the same planning pass, which count as taken.
func resolveCollision(target string, claimed map[string]bool) string {
	taken := func(p string) bool {
		return claimed[p] || fileExists(p)
	}
	if !taken(target) {
		return target
	}
	dir := filepath.Dir(target)
	base := filepath.Base(target)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
		if !taken(candidate) {
			return candidate
		}
	}
}
