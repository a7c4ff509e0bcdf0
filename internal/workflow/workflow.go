// Package workflow chains the vault fix, the external Markdown converter,
// embed conversion and publishing for a single note.
package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/adrg/frontmatter"
	goerrors "github.com/goliatone/go-errors"

	"github.com/ryotapoi/csfpub/internal/core"
	"github.com/ryotapoi/csfpub/internal/csf"
	"github.com/ryotapoi/csfpub/internal/logging"
	"github.com/ryotapoi/csfpub/internal/publish"
)

const (
	codeConverterFailed = "CONVERTER_FAILED"
	codeNoteInvalid     = "NOTE_INVALID"
)

// Runner executes the converter. The default runs a subprocess.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name in dir and returns its combined output.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Options describes one workflow run.
type Options struct {
	NotePath string
	Config   core.Config
	Publish  publish.Options // CSFPath is filled in by Run
	API      publish.API
	Store    publish.Store
	Runner   Runner
	// SkipFix leaves the note's directory untouched before converting.
	SkipFix bool
	Logger  logging.Logger
}

// Result reports each stage.
type Result struct {
	Fix       *core.FixResult
	FixErr    error
	CSFPath   string
	Converted int
	Publish   *publish.Result
}

// Run fixes image names in the note's directory, converts the note to
// <dir>/<stem>.csf, turns leftover embeds into image macros and publishes
// the page. A failed fix is reported and the run continues. Without an
// explicit title the page takes the note's front matter title, then its file
// name.
func Run(ctx context.Context, opts Options) (*Result, error) {
	log := logging.OrNop(opts.Logger)
	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	note, err := filepath.Abs(opts.NotePath)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(note); err != nil {
		return nil, invalidNote(err)
	} else if info.IsDir() {
		return nil, invalidNote(fmt.Errorf("%s is a directory", note))
	}
	dir := filepath.Dir(note)
	result := &Result{}

	if !opts.SkipFix {
		cfg := opts.Config
		result.Fix, result.FixErr = core.Fix(dir, core.FixOptions{Apply: true, Config: &cfg, Logger: log})
		if result.FixErr != nil {
			log.Warn("fix step failed; continuing", "dir", dir, "error", result.FixErr)
		}
	}

	csfPath, err := convert(ctx, runner, opts.Config, note)
	if err != nil {
		return result, err
	}
	result.CSFPath = csfPath

	data, err := os.ReadFile(csfPath)
	if err != nil {
		return result, err
	}
	converted, n := csf.ConvertEmbeds(string(data))
	if n > 0 {
		info, err := os.Stat(csfPath)
		if err != nil {
			return result, err
		}
		if err := os.WriteFile(csfPath, []byte(converted), info.Mode().Perm()); err != nil {
			return result, err
		}
	}
	result.Converted = n
	log.Info("embeds converted", "csf", csfPath, "count", n)

	popts := opts.Publish
	popts.CSFPath = csfPath
	if popts.Title == "" {
		title, err := noteTitle(note)
		if err != nil {
			log.Warn("front matter unreadable; using file name as title", "note", note, "error", err)
		}
		popts.Title = title
	}
	if popts.Logger == nil {
		popts.Logger = log
	}
	result.Publish, err = publish.Publish(ctx, opts.API, opts.Store, popts)
	if err != nil {
		return result, err
	}
	return result, nil
}

// convert runs the configured converter and returns the CSF it produced.
func convert(ctx context.Context, runner Runner, cfg core.Config, note string) (string, error) {
	command := cfg.Converter.Command
	if command == "" {
		return "", converterFailed(errors.New("no converter command configured"))
	}
	args := ExpandArgs(cfg.Converter.Args, note, cfg.Confluence.Domain)
	out, err := runner.Run(ctx, filepath.Dir(note), command, args...)
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return "", converterFailed(err)
	}

	stem := strings.TrimSuffix(filepath.Base(note), filepath.Ext(note))
	csfPath := filepath.Join(filepath.Dir(note), stem+".csf")
	if _, err := os.Stat(csfPath); err != nil {
		return "", converterFailed(fmt.Errorf("expected output %s: %w", csfPath, err))
	}
	return csfPath, nil
}

// noteTitle returns the title declared in the note's front matter, or ""
// when there is none.
func noteTitle(note string) (string, error) {
	data, err := os.ReadFile(note)
	if err != nil {
		return "", err
	}
	var meta struct {
		Title string `yaml:"title"`
	}
	if _, err := frontmatter.Parse(bytes.NewReader(data), &meta); err != nil {
		return "", fmt.Errorf("parse frontmatter: %w", err)
	}
	return strings.TrimSpace(meta.Title), nil
}

// ExpandArgs substitutes {input} and {domain} in converter arguments.
func ExpandArgs(args []string, input, domain string) []string {
	r := strings.NewReplacer("{input}", input, "{domain}", domain)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

func invalidNote(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid note").
		WithTextCode(codeNoteInvalid)
}

func converterFailed(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryCommand, "markdown conversion failed").
		WithTextCode(codeConverterFailed)
}
