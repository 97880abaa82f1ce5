package main

import (
	"fmt"
	"log"
	"os"

	"github.com/BurntSushi/toml"
)

// DriverConfig holds the optional TOML-driven configuration for
// filedbctl's export command. Unlike init/create-table/insert/query
// (which take their target directly as a positional argument), export
// needs connection details for an external SQL database and so reads
// them from a config file.
type DriverConfig struct {
	Export ExportConfig `toml:"export"`
}

type ExportConfig struct {
	Driver  string `toml:"driver"` // "mysql", "postgres", or "sqlite"
	DSN     string `toml:"dsn"`
	Table   string `toml:"table"`
	Workers int    `toml:"workers"`
}

var stdLogger = log.New(os.Stderr, "", log.LstdFlags)

func logger() *log.Logger { return stdLogger }

// loadDriverConfig reads a TOML config file and applies defaults.
func loadDriverConfig(path string) (*DriverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DriverConfig{Export: ExportConfig{Workers: 4}}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Export.Workers <= 0 {
		cfg.Export.Workers = 4
	}
	switch cfg.Export.Driver {
	case "mysql", "postgres", "sqlite":
	case "":
		return nil, fmt.Errorf("export.driver is required")
	default:
		return nil, fmt.Errorf("export.driver must be one of: mysql, postgres, sqlite")
	}
	if cfg.Export.DSN == "" {
		return nil, fmt.Errorf("export.dsn is required")
	}
	if cfg.Export.Table == "" {
		return nil, fmt.Errorf("export.table is required")
	}
	return &cfg, nil
}
