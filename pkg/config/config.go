// Package config loads engine options from an optional sentinel.yaml
// plus SENTINEL_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultFileName is looked up in the scan root when no explicit config
// path is given.
const DefaultFileName = "sentinel.yaml"

type Config struct {
	// Include/Exclude are doublestar globs relative to the scan root.
	Include []string `koanf:"include"`
	Exclude []string `koanf:"exclude"`
	// Rules lists extra rule document paths loaded on top of the
	// builtin set.
	Rules []string `koanf:"rules"`
	// NoBuiltin drops the embedded rule set entirely.
	NoBuiltin bool `koanf:"no_builtin"`
	// Workers bounds the scan worker pool; 0 means one per CPU.
	Workers int `koanf:"workers"`
	// MaxFileSize in bytes; larger files are skipped with a warning.
	MaxFileSize int64 `koanf:"max_file_size"`
	// RuleTimeoutMS bounds each (file, rule) evaluation.
	RuleTimeoutMS int `koanf:"rule_timeout_ms"`
	// Format selects the output marshaler.
	Format string `koanf:"format"`
	// FailOn is the severity threshold for a non-zero exit code.
	// Empty disables the policy.
	FailOn string `koanf:"fail_on"`
}

func (c *Config) RuleTimeout() time.Duration {
	return time.Duration(c.RuleTimeoutMS) * time.Millisecond
}

var defaults = map[string]interface{}{
	"exclude":         []string{".git/**", "node_modules/**", "vendor/**"},
	"workers":         0,
	"max_file_size":   1 << 20,
	"rule_timeout_ms": 2000,
	"format":          "cli",
}

// Load reads configuration with precedence: defaults < file < env.
// A missing file at the default location is not an error; an explicit
// path that does not exist is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider("SENTINEL_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "SENTINEL_"))
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
