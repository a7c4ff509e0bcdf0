package core

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DataDirName holds the lock file and the publish ledger inside a vault.
const DataDirName = ".csfpub"

// NormalizePath cleans a vault-relative path: forward slashes, no leading "./".
func NormalizePath(path string) string {
	clean := filepath.ToSlash(filepath.Clean(path))
	return strings.TrimPrefix(clean, "./")
}

// RelPath returns p relative to root with forward slashes, or p itself when
// it is not below root. Used for reporting.
func RelPath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return NormalizePath(rel)
}

// walkFiles calls fn for every regular file under root in lexical order,
// skipping the data directory and paths matched by the exclude globs.
func walkFiles(root string, excludes []string, fn func(path string, d fs.DirEntry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && len(excludes) > 0 {
			rel, relErr := filepath.Rel(root, path)
			if relErr == nil && isExcluded(NormalizePath(rel), excludes) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if d.IsDir() {
			if d.Name() == DataDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fn(path, d)
	})
}

// validateVault checks that vaultPath is an existing directory and returns
// its absolute form.
func validateVault(vaultPath string) (string, error) {
	abs, err := filepath.Abs(vaultPath)
	if err != nil {
		return "", invalidVault(err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", invalidVault(err)
	}
	if !info.IsDir() {
		return "", invalidVault(&fs.PathError{Op: "open", Path: abs, Err: errNotDir})
	}
	return abs, nil
}

// writeFileAtomic replaces path with data in one step: it writes a sibling
// temp file and renames it over path. The mode is applied explicitly because
// file creation is subject to the umask.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// writeFilePreservePerm writes data to path with the given permission bits.
// os.WriteFile applies umask on file creation, so os.Chmod is called to
// ensure the exact permission bits are set.
func writeFilePreservePerm(path string, data []byte, perm os.FileMode) error {
	if err := os.WriteFile(path, data, perm); err != nil {
		return err
	}
	return os.Chmod(path, perm)
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
