package vbuf

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ErrInvalidConfig is returned by Validate for settings that cannot work.
var ErrInvalidConfig = errors.New("vbuf: invalid config")

// Config holds the tuning of a renderer. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	// Scratch is the 2D surface image buffers are packed into each wave.
	ScratchWidth  int `toml:"scratch_width"`
	ScratchHeight int `toml:"scratch_height"`
	ScratchLayers int `toml:"scratch_layers"`

	// Shadow maps pack as strips into rows of this length.
	ShadowLength int `toml:"shadow_length"`
	ShadowLayers int `toml:"shadow_layers"`

	// MaxRenderSize is the largest image dimension rendered in one piece;
	// larger buffers are split into sub-images. It never exceeds the
	// scratch size.
	MaxRenderSize int `toml:"max_render_size"`

	// Padding is the border, in scratch pixels, kept between packed buffers.
	Padding int `toml:"padding"`

	// Command quad-tree tuning.
	CommandSplitThreshold int `toml:"command_split_threshold"`
	CommandMaxDepth       int `toml:"command_max_depth"`

	// Tile hit-detection quad-tree tuning.
	TileHitThreshold int `toml:"tile_hit_threshold"`
	TileHitMaxDepth  int `toml:"tile_hit_max_depth"`

	// AtlasTileBudget caps the number of atlas tiles; 0 is unlimited.
	AtlasTileBudget int `toml:"atlas_tile_budget"`

	// ShaderCacheSize is the number of compiled uber shaders kept.
	ShaderCacheSize int `toml:"shader_cache_size"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ScratchWidth:          2048,
		ScratchHeight:         2048,
		ScratchLayers:         4,
		ShadowLength:          4096,
		ShadowLayers:          64,
		MaxRenderSize:         2048,
		Padding:               2,
		CommandSplitThreshold: 30,
		CommandMaxDepth:       5,
		TileHitThreshold:      30,
		TileHitMaxDepth:       5,
		AtlasTileBudget:       0,
		ShaderCacheSize:       64,
	}
}

// Validate checks the configuration. It returns an error wrapping
// ErrInvalidConfig describing the first bad field.
func (c Config) Validate() error {
	checks := []struct {
		name string
		v    int
		min  int
	}{
		{"scratch_width", c.ScratchWidth, 64},
		{"scratch_height", c.ScratchHeight, 64},
		{"scratch_layers", c.ScratchLayers, 1},
		{"shadow_length", c.ShadowLength, 64},
		{"shadow_layers", c.ShadowLayers, 1},
		{"max_render_size", c.MaxRenderSize, 64},
		{"padding", c.Padding, 0},
		{"command_split_threshold", c.CommandSplitThreshold, 1},
		{"command_max_depth", c.CommandMaxDepth, 0},
		{"tile_hit_threshold", c.TileHitThreshold, 1},
		{"tile_hit_max_depth", c.TileHitMaxDepth, 0},
		{"atlas_tile_budget", c.AtlasTileBudget, 0},
		{"shader_cache_size", c.ShaderCacheSize, 1},
	}
	for _, ch := range checks {
		if ch.v < ch.min {
			return fmt.Errorf("%w: %s = %d, minimum %d", ErrInvalidConfig, ch.name, ch.v, ch.min)
		}
	}
	if c.MaxRenderSize > c.ScratchWidth || c.MaxRenderSize > c.ScratchHeight {
		return fmt.Errorf("%w: max_render_size %d exceeds scratch %dx%d",
			ErrInvalidConfig, c.MaxRenderSize, c.ScratchWidth, c.ScratchHeight)
	}
	return nil
}

// LoadConfig reads a TOML file. Keys missing from the file keep their
// DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return Config{}, fmt.Errorf("vbuf: read config %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalidConfig, undec[0].String(), path)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// WriteConfig writes c to path as TOML.
func WriteConfig(path string, c Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("vbuf: encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("vbuf: write config %s: %w", path, err)
	}
	return nil
}
