// Package config handles tool and viewer configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"math"
)

// Config holds all settings.
type Config struct {
	Build   BuildConfig   `yaml:"build"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Logging LoggingConfig `yaml:"logging"`
}

// BuildConfig holds asset build settings.
type BuildConfig struct {
	ErrorTolerance   float32 `yaml:"error_tolerance"`   // Diagonal-relative position error per axis
	Workers          int     `yaml:"workers"`           // 0 = GOMAXPROCS
	Compress         bool    `yaml:"compress"`          // zstd the meshlet payload
	CompressionLevel int     `yaml:"compression_level"` // 1 (fastest) .. 4 (best)
	OutputDir        string  `yaml:"output_dir"`        // Empty = next to the source
}

// ViewerConfig holds display settings for the viewer.
type ViewerConfig struct {
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	Fullscreen    bool    `yaml:"fullscreen"`
	VSync         bool    `yaml:"vsync"`
	FOVDegrees    float32 `yaml:"fov_degrees"`
	UseGPUDecoder bool    `yaml:"use_gpu_decoder"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Build: BuildConfig{
			ErrorTolerance:   0.0001,
			Workers:          0,
			Compress:         true,
			CompressionLevel: 2,
			OutputDir:        "",
		},
		Viewer: ViewerConfig{
			Width:         1280,
			Height:        720,
			Fullscreen:    false,
			VSync:         true,
			FOVDegrees:    60,
			UseGPUDecoder: false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks value ranges.
func (c *Config) Validate() error {
	tol := float64(c.Build.ErrorTolerance)
	if tol < 0 || math.IsNaN(tol) || math.IsInf(tol, 0) {
		return fmt.Errorf("%w: build.error_tolerance %v", ErrInvalidConfig, c.Build.ErrorTolerance)
	}
	if c.Build.Workers < 0 {
		return fmt.Errorf("%w: build.workers %d", ErrInvalidConfig, c.Build.Workers)
	}
	if c.Build.CompressionLevel < 1 || c.Build.CompressionLevel > 4 {
		return fmt.Errorf("%w: build.compression_level %d not in [1, 4]", ErrInvalidConfig, c.Build.CompressionLevel)
	}
	if c.Viewer.Width <= 0 || c.Viewer.Height <= 0 {
		return fmt.Errorf("%w: viewer size %dx%d", ErrInvalidConfig, c.Viewer.Width, c.Viewer.Height)
	}
	if c.Viewer.FOVDegrees <= 0 || c.Viewer.FOVDegrees >= 180 {
		return fmt.Errorf("%w: viewer.fov_degrees %v", ErrInvalidConfig, c.Viewer.FOVDegrees)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q", ErrInvalidConfig, c.Logging.Level)
	}
	return nil
}
