// Package config locates a crate's Cargo.toml and reads stagegen settings
// from its [package.metadata.stagegen] table.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/phobologic/stagegen/internal/emit"
	"github.com/phobologic/stagegen/internal/lang"
	"github.com/phobologic/stagegen/internal/parse"
)

// ManifestName is the Cargo manifest file name.
const ManifestName = "Cargo.toml"

// DefaultOutput is the artifact file name inside OUT_DIR.
const DefaultOutput = "init.rs"

// Config is the resolved configuration for one run.
type Config struct {
	ProjectDir        string // Directory holding Cargo.toml, or the start directory
	Manifest          string // Path to Cargo.toml; empty when none was found
	CrateName         string
	Root              string // Absolute path of the crate root file
	Routine           string
	Output            string
	Attribute         string
	TrustFnVisibility bool

	// Unknown lists keys under [package.metadata.stagegen] that were not
	// recognized.
	Unknown []string
}

// SourceDir returns the directory holding the crate root file.
func (c *Config) SourceDir() string {
	return filepath.Dir(c.Root)
}

type manifest struct {
	Package struct {
		Name     string `toml:"name"`
		Metadata struct {
			Stagegen settings `toml:"stagegen"`
		} `toml:"metadata"`
	} `toml:"package"`
	Lib struct {
		Path string `toml:"path"`
	} `toml:"lib"`
}

type settings struct {
	Root              string `toml:"root"`
	Routine           string `toml:"routine"`
	Output            string `toml:"output"`
	Attribute         string `toml:"attribute"`
	TrustFnVisibility bool   `toml:"trust-fn-visibility"`
}

// FindManifest walks up from startDir to locate Cargo.toml.
func FindManifest(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Overrides are settings given on the command line. Non-zero fields win
// over the manifest.
type Overrides struct {
	Root              string // Relative to the project directory unless absolute
	Routine           string
	Attribute         string
	TrustFnVisibility bool
}

// Load finds the manifest above startDir and resolves the configuration.
// Without a manifest, startDir is taken as the project directory and all
// settings take their defaults.
func Load(startDir string) (*Config, error) {
	return LoadWith(startDir, Overrides{})
}

// LoadWith is Load with command line overrides applied.
func LoadWith(startDir string, o Overrides) (*Config, error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	var m manifest
	if ok {
		meta, err := toml.DecodeFile(manifestPath, &m)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse TOML: %w", manifestPath, err)
		}
		cfg.Manifest = manifestPath
		cfg.ProjectDir = filepath.Dir(manifestPath)
		cfg.CrateName = m.Package.Name
		for _, key := range meta.Undecoded() {
			if len(key) > 3 && key[0] == "package" && key[1] == "metadata" && key[2] == "stagegen" {
				cfg.Unknown = append(cfg.Unknown, key.String())
			}
		}
	} else {
		dir, err := filepath.Abs(startDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve start directory: %w", err)
		}
		cfg.ProjectDir = dir
	}

	s := m.Package.Metadata.Stagegen
	cfg.Routine = orDefault(o.Routine, orDefault(s.Routine, emit.DefaultRoutine))
	cfg.Output = orDefault(s.Output, DefaultOutput)
	cfg.Attribute = orDefault(o.Attribute, orDefault(s.Attribute, parse.DefaultAttribute))
	cfg.TrustFnVisibility = o.TrustFnVisibility || s.TrustFnVisibility

	root, err := cfg.findRoot(orDefault(o.Root, orDefault(s.Root, m.Lib.Path)))
	if err != nil {
		return nil, err
	}
	cfg.Root = root

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that can be wrong independently of the source.
func (c *Config) Validate() error {
	where := c.Manifest
	if where == "" {
		where = "config"
	}
	if !lang.ValidSegment(c.Routine) {
		return fmt.Errorf("%s: routine %q is not a valid Rust identifier", where, c.Routine)
	}
	if !lang.ValidSegment(c.Attribute) {
		return fmt.Errorf("%s: attribute %q is not a valid Rust identifier", where, c.Attribute)
	}
	if c.Output == "" || strings.ContainsAny(c.Output, `/\`) {
		return fmt.Errorf("%s: output %q must be a plain file name", where, c.Output)
	}
	return nil
}

// findRoot returns the crate root file: the configured path if any, else
// src/lib.rs, else src/main.rs.
func (c *Config) findRoot(configured string) (string, error) {
	if configured != "" {
		p := filepath.FromSlash(configured)
		if !filepath.IsAbs(p) {
			p = filepath.Join(c.ProjectDir, p)
		}
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("crate root %s: %w", configured, err)
		}
		return p, nil
	}
	for _, candidate := range []string{"src/lib.rs", "src/main.rs"} {
		p := filepath.Join(c.ProjectDir, filepath.FromSlash(candidate))
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s: no crate root found (looked for src/lib.rs and src/main.rs)", c.ProjectDir)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
