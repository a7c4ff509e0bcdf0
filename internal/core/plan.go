package core

import (
	"io/fs"
	"path/filepath"
	"sort"
)

// RenameMap maps an old absolute asset path to its new absolute path.
// It is built once per run and only read afterwards.
type RenameMap map[string]string

// SortedKeys returns the old paths in lexical order.
func (m RenameMap) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PlanOptions controls PlanRenames.
type PlanOptions struct {
	ImageExtensions ExtensionSet
	ExcludePaths    []string
}

// PlanRenames walks root and returns the renames needed for image files
// whose names contain a space or "%20". Targets are collision-resolved
// against the files on disk and against targets already planned in this
// pass. It does not modify the filesystem.
func PlanRenames(root string, opts PlanOptions) (RenameMap, error) {
	exts := opts.ImageExtensions
	if exts == nil {
		exts = NewExtensionSet(DefaultImageExtensions)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	mapping := make(RenameMap)
	claimed := make(map[string]bool)
	err = walkFiles(abs, opts.ExcludePaths, func(path string, d fs.DirEntry) error {
		name := d.Name()
		if !exts.Has(name) || !needsNormalize(name) {
			return nil
		}
		newName := NormalizeFilename(name)
		if newName == name || newName == "" {
			return nil
		}
		target := resolveCollision(filepath.Join(filepath.Dir(path), newName), claimed)
		claimed[target] = true
		mapping[path] = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mapping, nil
}
