// Package config loads the stationd configuration from a yaml or json file
// with optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/evswap/stationd/infra/mqtt"
	"github.com/evswap/stationd/metrics"
)

// Config is the root configuration for the stationd process.
type Config struct {
	MQTT    mqtt.Config    `json:"mqtt"`
	Storage StorageConfig  `json:"storage"`
	Metrics metrics.Config `json:"metrics"`
	API     APIConfig      `json:"api"`
	Logging LoggingConfig  `json:"logging"`
}

// StorageConfig selects the inventory store backend.
type StorageConfig struct {
	Driver string `json:"driver"` // "memory" or "sqlite"
	Path   string `json:"path"`   // sqlite database file
}

// SetDefaults fills unset fields with sane values.
func (c *StorageConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "memory"
	}
	if c.Driver == "sqlite" && c.Path == "" {
		c.Path = "stationd.db"
	}
}

// Validate checks the driver selection.
func (c StorageConfig) Validate() error {
	switch c.Driver {
	case "memory", "sqlite":
		return nil
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Driver)
	}
}

// APIConfig configures the HTTP API server.
type APIConfig struct {
	Addr string `json:"addr"`
}

// SetDefaults fills unset fields with sane values.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// LoggingConfig configures log verbosity.
type LoggingConfig struct {
	Level string `json:"level"`
}

// SetDefaults fills unset fields with sane values.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the level against zerolog's known levels.
func (c LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "trace", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unsupported log level: %s", c.Level)
	}
}

// Load reads the configuration file at path. Environment variables prefixed
// with SW_ override file values, with "__" standing in for ".".
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("SW_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "sw_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Storage.SetDefaults()
	cfg.API.SetDefaults()
	cfg.Logging.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.MQTT.SetDefaults()
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
