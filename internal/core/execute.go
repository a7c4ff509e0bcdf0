package core

import (
	"os"
	"path/filepath"

	"github.com/ryotapoi/csfpub/internal/logging"
)

// RenameOutcome reports one planned or executed rename.
type RenameOutcome struct {
	Old string
	New string
	Err error // nil on success or in dry-run
}

// ExecuteRenames applies m to the filesystem, or only reports it when dryRun
// is set. A failing pair is recorded on its outcome and the remaining pairs
// still run; successful renames are not rolled back.
func ExecuteRenames(m RenameMap, dryRun bool, log logging.Logger) []RenameOutcome {
	log = logging.OrNop(log)
	outcomes := make([]RenameOutcome, 0, len(m))
	for _, old := range m.SortedKeys() {
		out := RenameOutcome{Old: old, New: m[old]}
		if !dryRun {
			out.Err = renameAsset(out.Old, out.New)
			if out.Err != nil {
				log.Warn("rename failed", "from", out.Old, "to", out.New, "error", out.Err)
			} else {
				log.Debug("renamed", "from", out.Old, "to", out.New)
			}
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func renameAsset(old, new string) error {
	if err := os.MkdirAll(filepath.Dir(new), 0o755); err != nil {
		return err
	}
	return os.Rename(old, new)
}
