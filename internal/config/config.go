// Package config handles palettizer run configuration.
package config

import "image/color"

// PackConfig holds all settings for one palettizer run.
type PackConfig struct {
	RuleFile     string `yaml:"rule_file"`
	ProjectState string `yaml:"project_state"`

	PageSizeX int `yaml:"page_size_x"`
	PageSizeY int `yaml:"page_size_y"`

	BackgroundR uint8 `yaml:"background_r"`
	BackgroundG uint8 `yaml:"background_g"`
	BackgroundB uint8 `yaml:"background_b"`
	BackgroundA uint8 `yaml:"background_a"`

	OmitSolitary bool `yaml:"omit_solitary"`

	RoundUVs  bool    `yaml:"round_uvs"`
	RoundUnit float64 `yaml:"round_unit"`
	RoundFuzz float64 `yaml:"round_fuzz"`

	AggressivelyClean bool `yaml:"aggressively_clean"`
	RedoAll           bool `yaml:"redo_all"`

	ImagePattern string `yaml:"image_pattern"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a PackConfig with its baseline default values.
func Default() *PackConfig {
	return &PackConfig{
		PageSizeX:    512,
		PageSizeY:    512,
		OmitSolitary: true,
		RoundUVs:     true,
		RoundUnit:    0.1,
		RoundFuzz:    0.01,
		ImagePattern: "%g_%p_%i",
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Background builds the color.RGBA the image updater should fill new
// atlas canvases with.
func (c *PackConfig) Background() color.RGBA {
	return color.RGBA{R: c.BackgroundR, G: c.BackgroundG, B: c.BackgroundB, A: c.BackgroundA}
}

// SetBackground stores c as the four persisted background components.
func (c *PackConfig) SetBackground(bg color.RGBA) {
	c.BackgroundR, c.BackgroundG, c.BackgroundB, c.BackgroundA = bg.R, bg.G, bg.B, bg.A
}
