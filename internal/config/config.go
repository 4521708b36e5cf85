// Package config loads the optional YAML settings file that tunes chart
// rendering and output naming. Absent file or absent keys fall back to
// defaults; command-line flags override both.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Charts ChartSettings  `yaml:"charts"`
	Output OutputSettings `yaml:"output"`
}

// ChartSettings controls replacement images: physical size placed in the
// document and pixel size handed to the renderer.
type ChartSettings struct {
	WidthCm     float64 `yaml:"width_cm"`
	HeightCm    float64 `yaml:"height_cm"`
	PixelWidth  int     `yaml:"pixel_width"`
	PixelHeight int     `yaml:"pixel_height"`
}

type OutputSettings struct {
	// Suffix is appended to the template base name for the rendered copy.
	Suffix string `yaml:"suffix"`
}

func Default() Config {
	return Config{
		Charts: ChartSettings{
			WidthCm:     15,
			HeightCm:    9,
			PixelWidth:  1024,
			PixelHeight: 640,
		},
		Output: OutputSettings{Suffix: "-atualizado"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults; a
// missing file is an error so typos in --config do not silently do nothing.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
