package rtlsdr

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hb9tf/rfmonitor/sdr"
)

func TestScan(t *testing.T) {
	out := strings.Join([]string{
		"2021-01-02, 03:04:05, 433000000, 433500000, 250000.00, 12, -5.5, -6.5",
		"garbage",
		"2021-01-02, 03:04:10, 433000000, 433500000, 250000.00, 12, -4.5, 2.5",
	}, "\n")

	s := &SDR{Identifier: "station"}
	samples := make(chan sdr.Sample, 10)
	require.NoError(t, s.Scan(context.Background(), strings.NewReader(out), samples))
	close(samples)

	var levels []float64
	for sample := range samples {
		require.Equal(t, "station", sample.Identifier)
		require.Equal(t, SourceName, sample.Source)
		levels = append(levels, sample.DBAvg)
	}
	require.Equal(t, []float64{-5.5, -6.5, -4.5, 2.5}, levels)
}
