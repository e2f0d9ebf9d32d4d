package sdr

import (
	"context"
	"time"
)

// Sample is one frequency bin of a sweep.
type Sample struct {
	// Metadata
	Identifier string
	Source     string

	// Radio Data
	FreqCenter  int64
	FreqLow     int64
	FreqHigh    int64
	DBHigh      float64
	DBLow       float64
	DBAvg       float64
	SampleCount int64
	Start       time.Time
	End         time.Time
}

// Covers reports whether freq falls into the bin of the sample.
func (s *Sample) Covers(freq int64) bool {
	return freq >= s.FreqLow && freq < s.FreqHigh
}

type SDR interface {
	Name() string
	Sweep(ctx context.Context, opts *Options, samples chan<- Sample) error
}

type Options struct {
	// LowFreq is the lower frequency to start the sweeps with in Hz.
	LowFreq int64
	// HighFreq is the upper frequency to end the sweeps with in Hz.
	HighFreq int64

	// BinSize is the FFT bin width (frequency resolution) in Hz.
	// BinSize is a maximum, smaller more convenient bins will be used.
	BinSize int64

	// IntegrationInterval is the duration during which to collect information per frequency.
	IntegrationInterval time.Duration
}

// SpanFor returns sweep options covering all freqs with a margin of one bin
// on either side.
func SpanFor(freqs []int64, binSize int64, integrationInterval time.Duration) *Options {
	opts := &Options{
		BinSize:             binSize,
		IntegrationInterval: integrationInterval,
	}
	for i, f := range freqs {
		if i == 0 || f < opts.LowFreq {
			opts.LowFreq = f
		}
		if f > opts.HighFreq {
			opts.HighFreq = f
		}
	}
	opts.LowFreq -= binSize
	if opts.LowFreq < 0 {
		opts.LowFreq = 0
	}
	opts.HighFreq += binSize
	return opts
}
