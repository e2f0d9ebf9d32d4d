// Package config loads the monitor setup of a collector from YAML.
package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/hb9tf/rfmonitor/monitor"
	"github.com/hb9tf/rfmonitor/sdr"
)

// maxHistoryCapacity bounds the level history of a monitor, about an hour
// of readings at the default cadence.
const maxHistoryCapacity = 1 << 17

type Config struct {
	Identifier string          `yaml:"identifier"`
	Location   LocationConfig  `yaml:"location"`
	History    HistoryConfig   `yaml:"history"`
	Levels     LevelsConfig    `yaml:"levels"`
	Monitors   []MonitorConfig `yaml:"monitors"`
}

// LocationConfig is either a Maidenhead locator or a position.
type LocationConfig struct {
	Locator string  `yaml:"locator"`
	Lat     float64 `yaml:"lat"`
	Lon     float64 `yaml:"lon"`
}

// HistoryConfig sizes the level history of every monitor.
type HistoryConfig struct {
	Window     float64 `yaml:"window"`      // seconds
	SampleRate float64 `yaml:"sample_rate"` // samples per second
	Samples    float64 `yaml:"samples"`     // samples per level reading
}

type LevelsConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type MonitorConfig struct {
	Freq      int64   `yaml:"freq"`
	Freqs     []int64 `yaml:"freqs"`
	Threshold float64 `yaml:"threshold"`
	Recording bool    `yaml:"recording"`
	Enabled   *bool   `yaml:"enabled"` // defaults to true
}

func (m *MonitorConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

func Default() *Config {
	return &Config{
		History: HistoryConfig{
			Window:     monitor.MaxLevelsTime,
			SampleRate: monitor.SampleRate,
			Samples:    monitor.Samples,
		},
		Levels: LevelsConfig{
			Min: monitor.LevelMin,
			Max: monitor.LevelMax,
		},
	}
}

// Load reads filename on top of the defaults and validates the result.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %q: %w", filename, err)
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Levels.Min >= c.Levels.Max {
		return fmt.Errorf("levels.min (%.1f) must be below levels.max (%.1f)", c.Levels.Min, c.Levels.Max)
	}
	if c.History.Window < 0 || c.History.SampleRate < 0 || c.History.Samples < 0 {
		return fmt.Errorf("history parameters must not be negative")
	}
	if c.History.Samples > 0 && c.History.Window*c.History.SampleRate/c.History.Samples > maxHistoryCapacity {
		return fmt.Errorf("history of %.0fs at %.0f samples/s holds more than %d levels", c.History.Window, c.History.SampleRate, maxHistoryCapacity)
	}
	if c.Location.Locator != "" {
		if _, _, err := sdr.LatLon(c.Location.Locator); err != nil {
			return fmt.Errorf("location.locator: %w", err)
		}
	}
	seen := map[int64]bool{}
	for i, m := range c.Monitors {
		if m.Freq <= 0 {
			return fmt.Errorf("monitors[%d].freq must be positive", i)
		}
		if seen[m.Freq] {
			return fmt.Errorf("monitors[%d].freq %d is configured twice", i, m.Freq)
		}
		seen[m.Freq] = true
		if len(m.Freqs) > 0 && !slices.Contains(m.Freqs, m.Freq) {
			return fmt.Errorf("monitors[%d].freq %d is not one of its freqs", i, m.Freq)
		}
		if m.Threshold < c.Levels.Min || m.Threshold > c.Levels.Max {
			return fmt.Errorf("monitors[%d].threshold %.1f outside of levels [%.1f, %.1f]", i, m.Threshold, c.Levels.Min, c.Levels.Max)
		}
	}
	return nil
}

// HistoryCapacity is the level history length every monitor gets.
func (c *Config) HistoryCapacity() int {
	return monitor.Capacity(c.History.Window, c.History.SampleRate, c.History.Samples)
}

// Locator returns the configured locator, deriving it from the position
// when only lat/lon are set.
func (c *Config) Locator() (string, error) {
	if c.Location.Locator != "" {
		return c.Location.Locator, nil
	}
	if c.Location.Lat == 0 && c.Location.Lon == 0 {
		return "", nil
	}
	return sdr.Locator(c.Location.Lat, c.Location.Lon, 6)
}

// MonitorOptions translates a monitor entry into monitor options.
func (c *Config) MonitorOptions(m MonitorConfig) *monitor.Options {
	return &monitor.Options{
		Frequency:   m.Freq,
		Frequencies: m.Freqs,
		Threshold:   m.Threshold,
		Recording:   m.Recording,
		LevelMin:    c.Levels.Min,
		LevelMax:    c.Levels.Max,
		HistorySize: c.HistoryCapacity(),
	}
}
