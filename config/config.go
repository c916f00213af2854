// Package config loads the service configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kuanb/zonecheck/layer"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when a key is absent
const (
	DefaultMaxRows     = 50
	DefaultCacheTTL    = time.Hour
	DefaultHTTPTimeout = 30 * time.Second
)

// Config represents the root configuration file structure.
type Config struct {
	// MaxRows caps the rows processed per batch. Zero selects the default,
	// a negative value disables the ceiling.
	MaxRows     int           `yaml:"max_rows,omitempty"`
	CacheTTL    time.Duration `yaml:"cache_ttl,omitempty"`
	HTTPTimeout time.Duration `yaml:"http_timeout,omitempty"`

	// DataDir resolves relative file sources; defaults to the config file's directory
	DataDir     string `yaml:"data_dir,omitempty"`
	ArcGISToken string `yaml:"arcgis_token,omitempty"`

	Layers []layer.Config `yaml:"layers"`
}

// Load reads and parses the YAML configuration file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(path)
	} else if !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(filepath.Dir(path), cfg.DataDir)
	}
	return cfg, nil
}

// Parse decodes a configuration document and applies defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MaxRows == 0 {
		c.MaxRows = DefaultMaxRows
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
}

// Validate checks every layer and rejects duplicate names
func (c *Config) Validate() error {
	if len(c.Layers) == 0 {
		return errors.New("no layers configured")
	}
	seen := make(map[string]struct{}, len(c.Layers))
	for _, l := range c.Layers {
		if err := l.Validate(); err != nil {
			return err
		}
		if l.Source.Type == layer.SourceStatic {
			return fmt.Errorf("%w: layer %s: static sources are in-memory only and cannot be configured from a file", layer.ErrInvalidConfig, l.Name)
		}
		if _, dup := seen[l.Name]; dup {
			return fmt.Errorf("%w: duplicate layer name %q", layer.ErrInvalidConfig, l.Name)
		}
		seen[l.Name] = struct{}{}
	}
	return nil
}

// RowLimit returns the ceiling passed to the pipeline, 0 meaning unlimited
func (c *Config) RowLimit() int {
	if c.MaxRows < 0 {
		return 0
	}
	return c.MaxRows
}
