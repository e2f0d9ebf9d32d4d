package filter

import (
	"context"

	"github.com/hb9tf/rfmonitor/sdr"
)

type Filterer interface {
	ShouldIgnore(*sdr.Sample) bool
}

// Filter forwards all samples none of the filters ignore. It returns when
// input is closed or ctx is done.
func Filter(ctx context.Context, input <-chan sdr.Sample, output chan<- sdr.Sample, filters []Filterer) error {
	for s := range input {
		if Ignored(&s, filters) {
			continue
		}
		select {
		case output <- s:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Ignored reports whether any of the filters ignores s.
func Ignored(s *sdr.Sample, filters []Filterer) bool {
	for _, f := range filters {
		if f.ShouldIgnore(s) {
			return true
		}
	}
	return false
}

// FilterFreq ignores samples whose bin lies entirely outside of a band.
type FilterFreq struct {
	FreqHigh int64
	FreqLow  int64
}

func (f *FilterFreq) ShouldIgnore(s *sdr.Sample) bool {
	// Check if low freq of sample is higher than what we want to include.
	if s.FreqLow > f.FreqHigh {
		return true
	}
	// Check if high freq of sample is lower than what we want to include.
	if s.FreqHigh < f.FreqLow {
		return true
	}
	return false
}
