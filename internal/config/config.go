// Package config handles loading the overwitch-cli configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quimgil/overwitch/internal/engine"
)

// Config represents the CLI configuration.
type Config struct {
	// BlocksPerTransfer sets the USB transfer size in 7-frame blocks.
	BlocksPerTransfer int `yaml:"blocks_per_transfer"`

	// RTPriority is the SCHED_FIFO priority for the engine workers.
	RTPriority int `yaml:"rt_priority"`

	// Resampler selects the underflow fallback: "sinc" or "linear".
	Resampler string `yaml:"resampler,omitempty"`

	// RingSeconds sizes the host ring buffers, in seconds of audio.
	RingSeconds float64 `yaml:"ring_seconds"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		BlocksPerTransfer: engine.DefaultBlocksPerTransfer,
		RTPriority:        engine.DefaultRTPriority,
		Resampler:         "sinc",
		RingSeconds:       0.5,
	}
}

// Load reads the configuration from path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.BlocksPerTransfer <= 0 {
		return nil, fmt.Errorf("blocks_per_transfer must be positive, got %d", cfg.BlocksPerTransfer)
	}
	if cfg.RingSeconds <= 0 {
		return nil, fmt.Errorf("ring_seconds must be positive, got %f", cfg.RingSeconds)
	}
	return cfg, nil
}
