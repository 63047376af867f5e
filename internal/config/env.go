package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds environment overrides. Unset variables leave fields nil.
type EnvConfig struct {
	Data    *string `env:"DONORDASH_DATA"`
	Format  *string `env:"DONORDASH_FORMAT" validate:"omitempty,oneof=csv json"`
	Dataset *string `env:"DONORDASH_DATASET"`
	DBPath  *string `env:"DONORDASH_DB"`
}

// LoadEnv reads overrides from the environment.
func LoadEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// Merge applies environment overrides on top of the file config.
func (e EnvConfig) Merge(cfg FileConfig) FileConfig {
	if e.Data != nil {
		cfg.Data.Path = e.Data
	}
	if e.Format != nil {
		cfg.Data.Format = e.Format
	}
	if e.Dataset != nil {
		cfg.Data.Dataset = e.Dataset
	}
	return cfg
}
