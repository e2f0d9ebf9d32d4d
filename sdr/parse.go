package sdr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// sweepFields is the number of leading metadata columns in rtl_power and
// hackrf_sweep output: date, time, low, high, bin width, sample count.
const sweepFields = 6

func parseUint(num string) (int64, error) {
	return strconv.ParseInt(strings.Split(strings.TrimSpace(num), ".")[0], 10, 64)
}

// CalculateBinRange calculates the highest and lowest frequencies in a bin
func CalculateBinRange(freqLow, freqHigh, binWidth, binNum int64) (int64, int64) {
	low := freqLow + (binNum * binWidth)
	high := low + binWidth
	if high > freqHigh {
		high = freqHigh
	}
	return low, high
}

// ParseRow parses one line of rtl_power or hackrf_sweep output into one
// sample per bin.
func ParseRow(line, identifier, source string) ([]Sample, error) {
	row := strings.Split(line, ", ")
	if len(row) <= sweepFields {
		return nil, fmt.Errorf("sweep row has %d fields, want more than %d", len(row), sweepFields)
	}
	numBins := len(row) - sweepFields

	parsedTime, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(row[0])+"T"+strings.TrimSpace(row[1])+"Z")
	if err != nil {
		return nil, fmt.Errorf("invalid sweep timestamp: %w", err)
	}
	sampleCount, err := parseUint(row[5])
	if err != nil {
		return nil, fmt.Errorf("invalid sample count: %w", err)
	}
	freqLow, err := parseUint(row[2])
	if err != nil {
		return nil, fmt.Errorf("invalid low frequency: %w", err)
	}
	freqHigh, err := parseUint(row[3])
	if err != nil {
		return nil, fmt.Errorf("invalid high frequency: %w", err)
	}
	binWidth, err := parseUint(row[4])
	if err != nil {
		return nil, fmt.Errorf("invalid bin width: %w", err)
	}

	samples := make([]Sample, 0, numBins)
	for i := 0; i < numBins; i++ {
		low, high := CalculateBinRange(freqLow, freqHigh, binWidth, int64(i))
		decibels, err := strconv.ParseFloat(strings.TrimSpace(row[i+sweepFields]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid level in bin %d: %w", i, err)
		}

		samples = append(samples, Sample{
			Identifier:  identifier,
			Source:      source,
			FreqCenter:  (low + high) / 2,
			FreqLow:     low,
			FreqHigh:    high,
			DBLow:       decibels,
			DBHigh:      decibels,
			DBAvg:       decibels,
			SampleCount: sampleCount,
			Start:       parsedTime,
			End:         parsedTime,
		})
	}
	return samples, nil
}
