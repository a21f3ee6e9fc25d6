// Package config handles indexaudit's own configuration and the
// audited root's on-disk service configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	auditerrors "github.com/Aman-CERP/indexaudit/internal/errors"
)

// Config is the tool configuration, loaded from YAML and overlaid by
// command-line flags.
type Config struct {
	// Sockname is the index service socket path. Empty defers to the
	// WATCHMAN_SOCK environment variable.
	Sockname string `yaml:"sockname"`

	// Timeout bounds each index-service round-trip.
	Timeout time.Duration `yaml:"timeout"`

	// CaseSensitive overrides the platform default for key
	// normalization. Nil means decide by platform.
	CaseSensitive *bool `yaml:"case_sensitive"`

	// IgnoreDirs are additional directories to exclude, merged with
	// the service-configured ignore list and the fixed VCS set.
	IgnoreDirs []string `yaml:"ignore_dirs"`

	// LogLevel is the minimum file-log level.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Timeout:  30 * time.Second,
		LogLevel: "info",
	}
}

// DefaultPath returns the user config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".indexaudit", "config.yaml")
	}
	return filepath.Join(home, ".indexaudit", "config.yaml")
}

// Load reads a YAML config file, applying defaults for absent fields.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, auditerrors.New(auditerrors.ErrCodeConfigNotFound,
			fmt.Sprintf("cannot read config %s: %v", path, err), err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, auditerrors.ConfigError(
			fmt.Sprintf("cannot parse config %s: %v", path, err), err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadOrDefault loads the user config if it exists, otherwise returns
// defaults. A present-but-broken file is still an error: silently
// ignoring it would mask misconfiguration.
func LoadOrDefault(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return auditerrors.ConfigError("timeout must not be negative", nil)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return auditerrors.ConfigError(
			fmt.Sprintf("unknown log_level %q", c.LogLevel), nil)
	}
	return nil
}

// EffectiveCaseSensitive resolves the key normalization mode: the
// explicit override when set, otherwise the platform default
// (darwin and windows filesystems are case-insensitive in the common
// configuration). No probe files are written into the audited tree.
func (c *Config) EffectiveCaseSensitive() bool {
	if c.CaseSensitive != nil {
		return *c.CaseSensitive
	}
	switch runtime.GOOS {
	case "darwin", "windows":
		return false
	default:
		return true
	}
}
