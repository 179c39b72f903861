// Package config loads the worker's options surface: the CLI/env-derived
// identity and runtime flags, plus the YAML file describing brandings and
// the per-workspace ignore list.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/opsfleet/workspace-worker/internal/domain"
)

// File is the on-disk YAML worker options file.
type File struct {
	Brandings map[string]BrandingConfig `yaml:"brandings"`
	Ignore    []string                  `yaml:"ignore"`
}

type BrandingConfig struct {
	Raw map[string]any `yaml:",inline"`
}

// Load reads and parses the YAML options file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &f, nil
}

// Brandings converts the file's brandings map into domain.Branding values.
func (f *File) Brandings() map[string]domain.Branding {
	out := make(map[string]domain.Branding, len(f.Brandings))
	for name, b := range f.Brandings {
		out[name] = domain.Branding{Name: name, Raw: b.Raw}
	}
	return out
}

// IgnoreSet converts the file's ignore list into a lookup set.
func (f *File) IgnoreSet() map[string]struct{} {
	out := make(map[string]struct{}, len(f.Ignore))
	for _, name := range f.Ignore {
		out[name] = struct{}{}
	}
	return out
}

// Options is the full runtime configuration, assembled from CLI flags and
// environment variables in cmd/workerd.
type Options struct {
	Identity domain.Identity

	AccountURL string
	Token      string

	DBURL           string
	LedgerDSN       string
	FulltextURL     string
	Txes            []string
	Migrations      []string
	WaitTimeout     time.Duration
	Force           bool
	Console         bool
	LogsDir         string
	MigrationCleanup bool

	MetricsAddr string
}

// Env reads a string environment variable, returning def if unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvBool reads a boolean environment variable (accepting the strconv.ParseBool
// vocabulary), returning def if unset, empty, or unparsable.
func EnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// ParseVersion parses a "major.minor.patch" semantic triple.
func ParseVersion(s string) (domain.Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return domain.Version{}, fmt.Errorf("config: version %q is not major.minor.patch", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return domain.Version{}, fmt.Errorf("config: version %q: %w", s, err)
		}
		v[i] = n
	}
	return domain.Version{Major: v[0], Minor: v[1], Patch: v[2]}, nil
}
