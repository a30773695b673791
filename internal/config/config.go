// Package config loads the TOML-driven configuration for a conversion run.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the full TOML-driven configuration for one conversion run.
type Config struct {
	Source         SourceConfig `toml:"source"`
	Dest           DestConfig   `toml:"dest"`
	CreateTriggers bool         `toml:"create_triggers"`
	CreateViews    bool         `toml:"create_views"`
	SchemaOnly     bool         `toml:"schema_only"`
}

// SourceConfig identifies the source SQL Server connection.
type SourceConfig struct {
	ConnString string `toml:"conn_string"`
}

// DestConfig identifies the destination SQLite file and a password field.
// Page-level encryption is not supported: the engine rejects any non-empty
// password as a configuration failure.
type DestConfig struct {
	Path     string `toml:"path"`
	Password string `toml:"password"`
}

// Load reads a TOML config file, applies defaults, and validates required
// fields. Unknown keys are rejected outright rather than silently ignored.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Config{
		CreateTriggers: true,
		CreateViews:    true,
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	cfg.Source.ConnString = strings.TrimSpace(cfg.Source.ConnString)
	if cfg.Source.ConnString == "" {
		return nil, fmt.Errorf("source.conn_string is required")
	}

	cfg.Dest.Path = strings.TrimSpace(cfg.Dest.Path)
	if cfg.Dest.Path == "" {
		return nil, fmt.Errorf("dest.path is required")
	}

	return &cfg, nil
}
