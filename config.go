package gojp2

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// DefaultTileSize is the write tile size used when none is configured.
var DefaultTileSize = [2]int{256, 256}

// Config holds the settings of the JPEG 2000 image I/O.
type Config struct {
	Writer  WriterConfig
	Cache   CacheConfig
	Logging LogConfig
}

// WriterConfig controls the encoder.
type WriterConfig struct {
	TileWidth   int    `toml:"tile_width"`
	TileHeight  int    `toml:"tile_height"`
	Lossless    bool   `toml:"lossless"`
	Quality     int    `toml:"quality"`     // 1-100, lossy only
	Resolutions int    `toml:"resolutions"` // resolution levels, 0 for codec default
	Format      string `toml:"format"`      // "jp2" or "j2k"; empty picks by file extension
	Comment     string `toml:"comment"`
}

// CacheConfig sizes the decoded tile cache. Zero disables it.
type CacheConfig struct {
	SizeMB int `toml:"size_mb"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Writer: WriterConfig{
			TileWidth:   DefaultTileSize[0],
			TileHeight:  DefaultTileSize[1],
			Lossless:    true,
			Quality:     75,
			Resolutions: 6,
		},
		Cache: CacheConfig{SizeMB: 256},
		Logging: LogConfig{
			Level: "warning",
		},
	}
}

// LoadConfig reads a TOML configuration file on top of the defaults. A
// missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("could not decode TOML config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the codec cannot use.
func (c *Config) Validate() error {
	w := c.Writer
	if w.TileWidth < 0 || w.TileHeight < 0 {
		return fmt.Errorf("negative tile size %dx%d", w.TileWidth, w.TileHeight)
	}
	if !w.Lossless && (w.Quality < 1 || w.Quality > 100) {
		return fmt.Errorf("quality %d out of range 1-100", w.Quality)
	}
	if w.Resolutions < 0 || w.Resolutions > 33 {
		return fmt.Errorf("resolutions %d out of range 0-33", w.Resolutions)
	}
	if w.Format != "" {
		if _, err := ParseFormat(w.Format); err != nil {
			return err
		}
	}
	if c.Cache.SizeMB < 0 {
		return fmt.Errorf("negative cache size %d MB", c.Cache.SizeMB)
	}
	if c.Logging.Level != "" {
		if _, err := ParseLogLevel(c.Logging.Level); err != nil {
			return err
		}
	}
	return nil
}

// tileSize returns the configured write tile size, falling back to DefaultTileSize.
func (w WriterConfig) tileSize() []int {
	ts := []int{w.TileWidth, w.TileHeight}
	for d := range ts {
		if ts[d] <= 0 {
			ts[d] = DefaultTileSize[d]
		}
	}
	return ts
}
