// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Data      DataConfig      `toml:"data"`
	Dashboard DashboardConfig `toml:"dashboard"`
}

// DataConfig maps dataset-related settings.
type DataConfig struct {
	Path    *string `toml:"path"`
	Format  *string `toml:"format" validate:"omitempty,oneof=csv json"`
	Dataset *string `toml:"dataset"`
}

// DashboardConfig maps display-related settings.
type DashboardConfig struct {
	PlotHeight *int  `toml:"plot-height" validate:"omitempty,min=3,max=60"`
	TopStates  *int  `toml:"top-states" validate:"omitempty,min=0"`
	Color      *bool `toml:"color"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}
