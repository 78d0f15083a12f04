// Package config resolves where a generation run reads its inputs and how
// it runs.
//
// Values come from four places, strongest first: command-line flags, ARTGEN_*
// environment variables, the project's artgen.yaml, and built-in defaults.
// Flags are applied by the caller on top of Resolve's result.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// SettingsFile is the settings file name inside a project root.
const SettingsFile = "artgen.yaml"

// Settings mirrors artgen.yaml. Relative paths are relative to the project
// root.
type Settings struct {
	Layers      string `yaml:"layers"`
	Config      string `yaml:"config"`
	Template    string `yaml:"template"`
	Rules       string `yaml:"rules"`
	Output      string `yaml:"output"`
	Format      string `yaml:"format"`
	Concurrency int    `yaml:"concurrency"`
	Renderer    string `yaml:"renderer"`
	Ledger      string `yaml:"ledger"`
	Pad         int    `yaml:"pad"`
	// Ignore lists asset globs, relative to the layers directory, that are
	// never picked as a trait image. "dir/**" covers everything under dir.
	Ignore []string `yaml:"ignore"`
}

// LoadSettings reads artgen.yaml in root.
// Returns nil (not an error) if the file does not exist.
func LoadSettings(root string) (*Settings, error) {
	path := filepath.Join(root, SettingsFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return &s, nil
}

// Env holds the ARTGEN_* overrides. Unset variables leave fields at their
// zero value (nil for the pointers).
type Env struct {
	Concurrency *int   `env:"ARTGEN_CONCURRENCY"`
	Format      string `env:"ARTGEN_FORMAT"`
	Seed        *int64 `env:"ARTGEN_SEED"`
	Renderer    string `env:"ARTGEN_RENDERER"`
	Ledger      string `env:"ARTGEN_LEDGER"`
}

// ParseEnv loads overrides from the environment.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// Options is the resolved run configuration. Paths are absolute or relative
// to the working directory.
type Options struct {
	Root        string
	Layers      string
	Config      string
	Template    string
	Rules       string
	Output      string
	Format      string
	Concurrency int
	Renderer    string
	Ledger      string
	Pad         int
	// Seed is only meaningful when HasSeed is set; otherwise a fresh seed
	// is drawn per run.
	Seed    int64
	HasSeed bool
	Ignore  []string
}

// Defaults returns the layout of a project created by artgen init.
// Concurrency 0 means one worker per CPU.
func Defaults(root string) Options {
	return Options{
		Root:     root,
		Layers:   filepath.Join(root, "layers"),
		Config:   filepath.Join(root, "layers.yaml"),
		Template: filepath.Join(root, "template.json"),
		Output:   filepath.Join(root, "output"),
		Format:   "png",
		Pad:      4,
	}
}

// Resolve layers settings and environment over the defaults for root.
// s may be nil.
func Resolve(root string, s *Settings, e Env) Options {
	o := Defaults(root)
	s.apply(&o)
	e.apply(&o)
	return o
}

func (s *Settings) apply(o *Options) {
	if s == nil {
		return
	}
	path := func(dst *string, v string) {
		if v == "" {
			return
		}
		if filepath.IsAbs(v) {
			*dst = v
		} else {
			*dst = filepath.Join(o.Root, v)
		}
	}
	path(&o.Layers, s.Layers)
	path(&o.Config, s.Config)
	path(&o.Template, s.Template)
	path(&o.Output, s.Output)
	path(&o.Ledger, s.Ledger)
	switch s.Rules {
	case "":
	case "builtin":
		o.Rules = s.Rules
	default:
		path(&o.Rules, s.Rules)
	}
	if s.Format != "" {
		o.Format = s.Format
	}
	if s.Concurrency > 0 {
		o.Concurrency = s.Concurrency
	}
	if s.Renderer != "" {
		o.Renderer = s.Renderer
	}
	if s.Pad > 0 {
		o.Pad = s.Pad
	}
	o.Ignore = append(o.Ignore, s.Ignore...)
}

func (e Env) apply(o *Options) {
	if e.Concurrency != nil {
		o.Concurrency = *e.Concurrency
	}
	if e.Format != "" {
		o.Format = e.Format
	}
	if e.Seed != nil {
		o.Seed, o.HasSeed = *e.Seed, true
	}
	if e.Renderer != "" {
		o.Renderer = e.Renderer
	}
	if e.Ledger != "" {
		o.Ledger = e.Ledger
	}
}

// Ignored reports whether rel (forward-slash, relative to the layers
// directory) matches any ignore rule. Safe to call on a nil receiver.
func (o *Options) Ignored(rel string) bool {
	if o == nil {
		return false
	}
	for _, rule := range o.Ignore {
		if matchPattern(strings.TrimPrefix(rule, "./"), rel) {
			return true
		}
	}
	return false
}

// matchPattern reports whether path matches a glob pattern.
//
// "prefix/**" matches the prefix directory itself and every path beneath it.
// All other patterns use filepath.Match semantics (single * does not cross /).
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	matched, _ := filepath.Match(pattern, path)
	return matched
}
