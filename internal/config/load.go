package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load builds a PackConfig with priority: defaults < file < flags.
// ParseFlags must have already run.
func Load() (*PackConfig, error) {
	cfg := Default()

	if path := ConfigPath(); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	if err := applyFlags(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile merges the YAML defaults file at path into cfg.
func loadFromFile(cfg *PackConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
