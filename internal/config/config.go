// Package config handles stitch tool configuration loading and management.
package config

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-stitch/internal/stitch"
)

// Store kinds.
const (
	StoreDir    = "dir"
	StoreBadger = "badger"
	StoreMemory = "memory"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all tool settings.
type Config struct {
	Stitch   StitchConfig   `yaml:"stitch"`
	Store    StoreConfig    `yaml:"store"`
	Generate GenerateConfig `yaml:"generate"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// StitchConfig holds seam blending settings.
type StitchConfig struct {
	SeamWidth        int     `yaml:"seam_width"`        // Interior rows the correction tapers over
	Tolerance        float64 `yaml:"tolerance"`         // Max normalised difference left alone (0-1)
	Directions       string  `yaml:"directions"`        // "all" or e.g. "NSWE", "north,east"
	AdjacencyEpsilon float64 `yaml:"adjacency_epsilon"` // World-space slack when matching neighbours
	Confirmed        bool    `yaml:"confirmed"`         // Skip the confirmation prompt for batch runs
}

// StoreConfig selects where tiles live.
type StoreConfig struct {
	Kind string `yaml:"kind"` // dir, badger or memory
	Path string `yaml:"path"`
}

// GenerateConfig holds demo tile generation settings.
type GenerateConfig struct {
	Seed       int64   `yaml:"seed"`
	Columns    int     `yaml:"columns"`
	Rows       int     `yaml:"rows"`
	Resolution int     `yaml:"resolution"` // Samples per tile side
	TileSize   float64 `yaml:"tile_size"`  // World units per tile side
	Vertical   float64 `yaml:"vertical"`   // Vertical world range
	Roughness  float64 `yaml:"roughness"`  // Per-tile offset amplitude, as a fraction of Vertical
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Stitch: StitchConfig{
			SeamWidth:        4,
			Tolerance:        0.001,
			Directions:       "all",
			AdjacencyEpsilon: 0.01,
			Confirmed:        false,
		},
		Store: StoreConfig{
			Kind: StoreDir,
			Path: "tiles",
		},
		Generate: GenerateConfig{
			Seed:       1,
			Columns:    3,
			Rows:       3,
			Resolution: 65,
			TileSize:   500,
			Vertical:   600,
			Roughness:  0.05,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "console",
			LogFile: "",
		},
	}
}

// Params returns the blend parameters.
func (c *Config) Params() stitch.Params {
	return stitch.Params{SeamWidth: c.Stitch.SeamWidth, Tolerance: c.Stitch.Tolerance}
}

// Mask parses the configured directions.
func (c *Config) Mask() (stitch.Mask, error) {
	return stitch.ParseMask(c.Stitch.Directions)
}

// Validate checks every setting and reports the first problem found.
func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Mask(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Stitch.AdjacencyEpsilon < 0 {
		return fmt.Errorf("%w: adjacency_epsilon must not be negative", ErrInvalidConfig)
	}

	switch c.Store.Kind {
	case StoreDir, StoreBadger:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for %s stores", ErrInvalidConfig, c.Store.Kind)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: unknown store kind %q", ErrInvalidConfig, c.Store.Kind)
	}

	g := c.Generate
	if g.Columns <= 0 || g.Rows <= 0 || g.Resolution < 2 || g.TileSize <= 0 || g.Vertical <= 0 {
		return fmt.Errorf("%w: generate needs positive columns, rows, tile_size, vertical and resolution >= 2", ErrInvalidConfig)
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}
