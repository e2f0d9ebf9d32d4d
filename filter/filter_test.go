package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hb9tf/rfmonitor/sdr"
)

func bin(low, high int64) sdr.Sample {
	return sdr.Sample{FreqLow: low, FreqHigh: high, FreqCenter: (low + high) / 2}
}

func TestFilterFreq(t *testing.T) {
	f := &FilterFreq{FreqLow: 100, FreqHigh: 200}
	for _, tc := range []struct {
		s    sdr.Sample
		want bool
	}{
		{bin(0, 50), true},
		{bin(90, 110), false},
		{bin(150, 160), false},
		{bin(190, 210), false},
		{bin(201, 300), true},
	} {
		require.Equal(t, tc.want, f.ShouldIgnore(&tc.s), "%+v", tc.s)
	}
}

// covering ignores bins that contain none of its frequencies.
type covering []int64

func (c covering) ShouldIgnore(s *sdr.Sample) bool {
	for _, freq := range c {
		if s.Covers(freq) {
			return false
		}
	}
	return true
}

func TestFilter(t *testing.T) {
	input := make(chan sdr.Sample, 4)
	output := make(chan sdr.Sample, 4)
	input <- bin(0, 10)
	input <- bin(100, 110)
	input <- bin(200, 210)
	input <- bin(105, 115)
	close(input)

	filters := []Filterer{
		&FilterFreq{FreqLow: 0, FreqHigh: 150},
		covering{106},
	}
	require.NoError(t, Filter(context.Background(), input, output, filters))
	close(output)

	var got []sdr.Sample
	for s := range output {
		got = append(got, s)
	}
	require.Equal(t, []sdr.Sample{bin(100, 110), bin(105, 115)}, got)
}

func TestFilterCancelled(t *testing.T) {
	input := make(chan sdr.Sample, 1)
	input <- bin(0, 10)
	close(input)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Filter(ctx, input, make(chan sdr.Sample), nil)
	require.ErrorIs(t, err, context.Canceled)
}
