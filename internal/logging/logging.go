// Package logging adapts go-logger for csfpub packages.
package logging

import (
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

// Logger is the leveled logger used across csfpub. Arguments after msg are
// key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config selects the level and output format of the root logger.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Root is a named-logger factory backed by go-logger.
type Root struct {
	base *glog.BaseLogger
}

// New builds a root logger. Empty fields fall back to info/console.
func New(cfg Config) (*Root, error) {
	options := []glog.Option{}

	level, err := normalizeLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	options = append(options, glog.WithLevel(level))

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "console":
		options = append(options, glog.WithLoggerTypeConsole())
	case "json":
		options = append(options, glog.WithLoggerTypeJSON())
	case "pretty":
		options = append(options, glog.WithLoggerTypePretty())
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	return &Root{base: glog.NewLogger(options...)}, nil
}

// Named returns a child logger tagged with name.
func (r *Root) Named(name string) Logger {
	if r == nil || r.base == nil {
		return Nop()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return r.base
	}
	return r.base.GetLogger(name)
}

// ValidateConfig reports whether cfg would be accepted by New.
func ValidateConfig(cfg Config) error {
	if _, err := normalizeLevel(cfg.Level); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "console", "json", "pretty":
		return nil
	}
	return fmt.Errorf("unsupported log format %q", cfg.Format)
}

func normalizeLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return glog.Info, nil
	case "trace":
		return glog.Trace, nil
	case "debug":
		return glog.Debug, nil
	case "warn", "warning":
		return glog.Warn, nil
	case "error":
		return glog.Error, nil
	}
	return "", fmt.Errorf("unsupported log level %q", level)
}

type nop struct{}

func (nop) Debug(string, ...any) {}
func (nop) Info(string, ...any)  {}
func (nop) Warn(string, ...any)  {}
func (nop) Error(string, ...any) {}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nop{} }

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
