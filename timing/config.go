// Package timing provides the virtual timer interrupt that drives the
// frame hook, built on the akita discrete-event engine.
package timing

import (
	"errors"
	"fmt"
	"os"

	"github.com/sugawarayuuta/sonnet"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid timing config")

// Config holds the timer parameters.
type Config struct {
	// FrequencyHz is the CPU clock. Default: 486 MHz.
	FrequencyHz uint64 `json:"frequency_hz"`

	// CyclesPerFrame is the number of CPU cycles between two frame
	// interrupts. Default: 8100000 (60 fields per second).
	CyclesPerFrame uint64 `json:"cycles_per_frame"`

	// RetryCycles is how long to wait before calling the hook again after
	// it reported the CPU was not in a patchable state. Default: 1000.
	RetryCycles uint64 `json:"retry_cycles"`

	// Frames is the number of frame periods to simulate. 0 runs until the
	// engine is stopped.
	Frames uint64 `json:"frames"`
}

// DefaultConfig returns a Config with the default values.
func DefaultConfig() *Config {
	return &Config{
		FrequencyHz:    486000000,
		CyclesPerFrame: 8100000,
		RetryCycles:    1000,
		Frames:         0,
	}
}

// LoadConfig loads a Config from a JSON file. Fields missing from the file
// keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultConfig()
	if err := sonnet.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := sonnet.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that the timer can make progress.
func (c *Config) Validate() error {
	if c.FrequencyHz == 0 {
		return fmt.Errorf("%w: frequency_hz must be > 0", ErrInvalidConfig)
	}
	if c.CyclesPerFrame == 0 {
		return fmt.Errorf("%w: cycles_per_frame must be > 0", ErrInvalidConfig)
	}
	if c.RetryCycles == 0 {
		return fmt.Errorf("%w: retry_cycles must be > 0", ErrInvalidConfig)
	}
	if c.RetryCycles >= c.CyclesPerFrame {
		return fmt.Errorf("%w: retry_cycles must be < cycles_per_frame", ErrInvalidConfig)
	}
	return nil
}
