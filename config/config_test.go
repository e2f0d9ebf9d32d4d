package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rfmonitor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
identifier: roof
location:
  lat: 0.1
  lon: 0.1
history:
  window: 5
monitors:
  - freq: 433920000
    threshold: -30
    recording: true
  - freq: 144800000
    freqs: [144800000, 145500000]
    threshold: -40
    enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "roof", cfg.Identifier)
	require.Len(t, cfg.Monitors, 2)
	require.True(t, cfg.Monitors[0].IsEnabled())
	require.False(t, cfg.Monitors[1].IsEnabled())
	require.Equal(t, -100.0, cfg.Levels.Min)
	require.Equal(t, 183, cfg.HistoryCapacity())

	loc, err := cfg.Locator()
	require.NoError(t, err)
	require.Equal(t, "JJ00bc", loc)

	opts := cfg.MonitorOptions(cfg.Monitors[1])
	require.Equal(t, int64(144800000), opts.Frequency)
	require.Equal(t, []int64{144800000, 145500000}, opts.Frequencies)
	require.Equal(t, 183, opts.HistorySize)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "monitors: [unclosed"))
	require.ErrorContains(t, err, "parse")
}

func TestValidate(t *testing.T) {
	for name, content := range map[string]string{
		"inverted levels":    "levels: {min: 10, max: -10}",
		"bad locator":        "location: {locator: ZZ99}",
		"missing freq":       "monitors: [{threshold: -20}]",
		"duplicate freq":     "monitors: [{freq: 1, threshold: -20}, {freq: 1, threshold: -20}]",
		"freq not in freqs":  "monitors: [{freq: 1, freqs: [2, 3], threshold: -20}]",
		"threshold too high": "monitors: [{freq: 1, threshold: 50}]",
		"negative window":    "history: {window: -1}",
		"oversized history":  "history: {window: 1e9}",
	} {
		_, err := Load(writeConfig(t, content))
		require.Error(t, err, name)
	}
}

func TestValidateHistoryBound(t *testing.T) {
	c := Default()
	c.History.Window = 3000
	require.NoError(t, c.Validate())
	require.LessOrEqual(t, c.HistoryCapacity(), maxHistoryCapacity)

	c.History.Window = 1e9
	require.ErrorContains(t, c.Validate(), "more than")
}

func TestLocatorUnset(t *testing.T) {
	loc, err := Default().Locator()
	require.NoError(t, err)
	require.Empty(t, loc)
}
