package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ryotapoi/csfpub/internal/logging"
)

// ConfigFileName is read from the vault root.
const ConfigFileName = "csfpub.yaml"

// Config represents the csfpub.yaml configuration file.
type Config struct {
	Images       ImagesConfig     `yaml:"images"`
	Documents    DocumentsConfig  `yaml:"documents"`
	ExcludePaths []string         `yaml:"exclude_paths"`
	Log          logging.Config   `yaml:"log"`
	Confluence   ConfluenceConfig `yaml:"confluence"`
	Converter    ConverterConfig  `yaml:"converter"`
}

// ImagesConfig selects which files count as image assets.
type ImagesConfig struct {
	Extensions []string `yaml:"extensions"`
}

// DocumentsConfig selects which files are scanned for references and how
// they are decoded.
type DocumentsConfig struct {
	Extensions []string `yaml:"extensions"`
	Encodings  []string `yaml:"encodings"`
}

// ConfluenceConfig holds publish defaults. The token is never read from the
// file; it comes from the environment or a flag.
type ConfluenceConfig struct {
	Domain       string `yaml:"domain"`
	BasePath     string `yaml:"base_path"`
	SpaceKey     string `yaml:"space_key"`
	ParentPageID string `yaml:"parent_page_id"`
}

// ConverterConfig names the external Markdown→CSF converter. Args may use
// the {input} and {domain} placeholders.
type ConverterConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// DefaultConfig returns the settings used when csfpub.yaml is absent.
func DefaultConfig() Config {
	return Config{
		Images:    ImagesConfig{Extensions: append([]string(nil), DefaultImageExtensions...)},
		Documents: DocumentsConfig{Extensions: []string{".md"}, Encodings: []string{"utf-8", "latin-1"}},
		Confluence: ConfluenceConfig{
			BasePath: "/",
		},
		Converter: ConverterConfig{
			Command: "md2conf",
			Args:    []string{"{input}", "--local", "--domain", "{domain}"},
		},
	}
}

// LoadConfig reads csfpub.yaml from the vault root. Fields missing from the
// file keep their defaults. Returns the defaults if the file does not exist.
// A vault that is missing or not a directory is a validation error.
func LoadConfig(vaultPath string) (Config, error) {
	vault, err := validateVault(vaultPath)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	p := filepath.Join(vault, ConfigFileName)
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, invalidConfig(fmt.Errorf("%s: %w", ConfigFileName, err))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks encodings, globs and log settings.
func (c Config) Validate() error {
	if err := validateGlobPatterns(c.ExcludePaths); err != nil {
		return invalidConfig(err)
	}
	if _, err := LookupEncodings(c.Documents.Encodings); err != nil {
		return invalidConfig(err)
	}
	if err := logging.ValidateConfig(c.Log); err != nil {
		return invalidConfig(err)
	}
	return nil
}

// ImageExtensions returns the configured image extension set.
func (c Config) ImageExtensions() ExtensionSet {
	if len(c.Images.Extensions) == 0 {
		return NewExtensionSet(DefaultImageExtensions)
	}
	return NewExtensionSet(c.Images.Extensions)
}

// DocumentExtensions returns the configured document extension set.
func (c Config) DocumentExtensions() ExtensionSet {
	if len(c.Documents.Extensions) == 0 {
		return NewExtensionSet([]string{".md"})
	}
	return NewExtensionSet(c.Documents.Extensions)
}

// validateGlobPatterns checks that none of the patterns use unsupported character classes.
func validateGlobPatterns(patterns []string) error {
	for _, p := range patterns {
		if strings.Contains(p, "[") {
			return fmt.Errorf("unsupported glob pattern (character class): %s", p)
		}
	}
	return nil
}

// isExcluded reports whether the vault-relative path matches any pattern.
func isExcluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if globMatch(p, rel) {
			return true
		}
	}
	return false
}

// globMatch implements SQLite GLOB semantics in Go.
// '*' matches any sequence of characters (including '/').
// '?' matches exactly one character.
// '[' is treated as a literal character (character classes not supported).
func globMatch(pattern, s string) bool {
	return globMatchImpl([]rune(pattern), []rune(s))
}

func globMatchImpl(pattern, s []rune) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// Skip consecutive '*'.
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 0 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if globMatchImpl(pattern, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			pattern = pattern[1:]
			s = s[1:]
		default:
			if len(s) == 0 || pattern[0] != s[0] {
				return false
			}
			pattern = pattern[1:]
			s = s[1:]
		}
	}
	return len(s) == 0
}
