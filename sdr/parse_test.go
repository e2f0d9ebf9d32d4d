package sdr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRowHackRF(t *testing.T) {
	line := "2019-08-04, 13:29:05.421461, 2400000000, 2405000000, 1000000.00, 20, -64.72, -63.36, -60.91, -62.89, -63.41"
	samples, err := ParseRow(line, "station", "hackrf")
	require.NoError(t, err)
	require.Len(t, samples, 5)

	want := time.Date(2019, 8, 4, 13, 29, 5, 421461000, time.UTC)
	require.Equal(t, Sample{
		Identifier:  "station",
		Source:      "hackrf",
		FreqCenter:  2402500000,
		FreqLow:     2402000000,
		FreqHigh:    2403000000,
		DBHigh:      -60.91,
		DBLow:       -60.91,
		DBAvg:       -60.91,
		SampleCount: 20,
		Start:       want,
		End:         want,
	}, samples[2])
	require.True(t, samples[4].Start.Equal(want))
	require.Equal(t, int64(2405000000), samples[4].FreqHigh)
}

func TestParseRowRTLPower(t *testing.T) {
	line := "2021-01-02, 03:04:05, 433000000, 434000000, 250000.00, 12, -5.5, -6.5, 1.25, -7"
	samples, err := ParseRow(line, "id", "rtl_sdr")
	require.NoError(t, err)
	require.Len(t, samples, 4)
	require.Equal(t, int64(433500000), samples[2].FreqLow)
	require.Equal(t, 1.25, samples[2].DBAvg)
	require.True(t, samples[2].Covers(433920000-250000))
	require.False(t, samples[2].Covers(433750000))
}

func TestParseRowErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"2021-01-02, 03:04:05, 433000000, 434000000, 250000.00, 12",
		"yesterday, 03:04:05, 433000000, 434000000, 250000.00, 12, -5",
		"2021-01-02, 03:04:05, low, 434000000, 250000.00, 12, -5",
		"2021-01-02, 03:04:05, 433000000, 434000000, 250000.00, 12, loud",
	} {
		_, err := ParseRow(line, "id", "rtl_sdr")
		require.Error(t, err, line)
	}
}

func TestCalculateBinRange(t *testing.T) {
	low, high := CalculateBinRange(100, 250, 100, 1)
	require.Equal(t, int64(200), low)
	require.Equal(t, int64(250), high)
}

func TestSpanFor(t *testing.T) {
	opts := SpanFor([]int64{433920000, 144800000, 868300000}, 12500, 5*time.Second)
	require.Equal(t, int64(144787500), opts.LowFreq)
	require.Equal(t, int64(868312500), opts.HighFreq)
	require.Equal(t, 5*time.Second, opts.IntegrationInterval)
}
