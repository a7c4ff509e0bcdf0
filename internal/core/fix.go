package core

import (
	"github.com/ryotapoi/csfpub/internal/logging"
)

// FixOptions controls the Fix pipeline.
type FixOptions struct {
	// Apply persists renames and document edits. The zero value is a dry run.
	Apply bool
	// ImageExtensions overrides the configured image extension set.
	ImageExtensions ExtensionSet
	// Config overrides csfpub.yaml; nil means load it from the vault.
	Config *Config
	Logger logging.Logger
}

// FixResult reports what a Fix run did or would do.
type FixResult struct {
	Vault           string
	DryRun          bool
	ImageExtensions []string
	Renames         []RenameOutcome
	Documents       []DocumentOutcome
}

// RenameFailures returns the renames that failed.
func (r *FixResult) RenameFailures() []RenameOutcome {
	var out []RenameOutcome
	for _, o := range r.Renames {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// DocumentFailures returns the documents that could not be processed.
func (r *FixResult) DocumentFailures() []DocumentOutcome {
	var out []DocumentOutcome
	for _, o := range r.Documents {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// ChangedDocuments returns the documents that changed or would change.
func (r *FixResult) ChangedDocuments() []DocumentOutcome {
	var out []DocumentOutcome
	for _, o := range r.Documents {
		if o.Err == nil {
			out = append(out, o)
		}
	}
	return out
}

// Fix renames image files whose names contain spaces and rewrites every
// reference to them under vaultPath. Without opts.Apply it only reports.
// Planning always completes before any rename or document write, and apply
// runs hold the vault lock for their whole duration.
func Fix(vaultPath string, opts FixOptions) (*FixResult, error) {
	log := logging.OrNop(opts.Logger)
	vault, err := validateVault(vaultPath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if opts.Config != nil {
		cfg = *opts.Config
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else if cfg, err = LoadConfig(vault); err != nil {
		return nil, err
	}
	encs, err := LookupEncodings(cfg.Documents.Encodings)
	if err != nil {
		return nil, invalidConfig(err)
	}
	imgExts := opts.ImageExtensions
	if len(imgExts) == 0 {
		imgExts = cfg.ImageExtensions()
	}

	if opts.Apply {
		lock, err := AcquireLock(vault)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				log.Warn("release vault lock", "error", err)
			}
		}()
	}

	result := &FixResult{
		Vault:           vault,
		DryRun:          !opts.Apply,
		ImageExtensions: imgExts.Sorted(),
	}

	mapping, err := PlanRenames(vault, PlanOptions{
		ImageExtensions: imgExts,
		ExcludePaths:    cfg.ExcludePaths,
	})
	if err != nil {
		return nil, err
	}
	log.Info("rename plan ready", "vault", vault, "renames", len(mapping), "dry_run", result.DryRun)

	result.Renames = ExecuteRenames(mapping, result.DryRun, log)
	applied, failed := appliedRenames(result.Renames)

	result.Documents, err = UpdateDocuments(vault, applied, UpdateOptions{
		DryRun:             result.DryRun,
		ImageExtensions:    imgExts,
		DocumentExtensions: cfg.DocumentExtensions(),
		Encodings:          encs,
		ExcludePaths:       cfg.ExcludePaths,
		Pinned:             failed,
		Logger:             log,
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

// appliedRenames splits outcomes into the renames that took effect and the
// old paths whose rename failed.
func appliedRenames(outcomes []RenameOutcome) (RenameMap, []string) {
	applied := make(RenameMap, len(outcomes))
	var failed []string
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o.Old)
			continue
		}
		applied[o.Old] = o.New
	}
	return applied, failed
}
