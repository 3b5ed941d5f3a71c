// Package config loads the optional TOML configuration for the
// annovate command line. Everything has a sensible zero value, so no
// config file is needed for normal use.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the content of an annovate config file.
type Config struct {
	// RecordFileName overrides the name of the sidecar record file.
	// Empty means the built-in default.
	RecordFileName string `toml:"record_file_name"`

	// Default is the value reported for lookup misses when the
	// -default flag is not given.
	Default string `toml:"default"`
}

// DefaultPath returns the per-user config file location, or "" if the
// user config directory cannot be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "annovate", "config.toml")
}

// Load reads the config file at path, or at DefaultPath() when path is
// empty. A missing file is not an error and yields a zero Config.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return cfg, nil
}
