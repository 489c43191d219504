package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes which tables a rewrite touches and which transformer
// runs on each column.
type Config struct {
	IncludeTables []string                `yaml:"include_tables,omitempty"`
	ExcludeTables []string                `yaml:"exclude_tables,omitempty"`
	Tables        map[string]*TableConfig `yaml:"tables"`
}

type TableConfig struct {
	Columns map[string]*TransformConfig `yaml:"columns"`
}

type TransformConfig struct {
	Type   string `yaml:"type"`
	Amount *int   `yaml:"amount,omitempty"`
	Value  any    `yaml:"value,omitempty"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for table, tc := range cfg.Tables {
		if tc == nil {
			continue
		}
		for col, tr := range tc.Columns {
			if tr == nil || tr.Type == "" {
				return nil, fmt.Errorf("parse config: %s.%s: missing transformer type", table, col)
			}
		}
	}
	return cfg, nil
}
