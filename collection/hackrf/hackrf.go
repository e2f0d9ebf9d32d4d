package hackrf

import (
	"bufio"
	"cmp"
	"context"
	"fmt"
	"io"
	"os/exec"
	"slices"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/rfmonitor/sdr"
)

const (
	SourceName = "hackrf"
	sweepAlias = "hackrf_sweep"
)

type SDR struct {
	Identifier string

	buckets   map[int64]sdr.Sample
	bucketsMu sync.Mutex
}

func (s *SDR) Name() string {
	return SourceName
}

func (s *SDR) Sweep(ctx context.Context, opts *sdr.Options, samples chan<- sdr.Sample) error {
	args := []string{
		fmt.Sprintf("-f %d:%d", opts.LowFreq/1000000, (opts.HighFreq+999999)/1000000),
		fmt.Sprintf("-w %d", opts.BinSize),
		"-a 1",  // RX RF amplifier 1=Enable, 0=Disable
		"-l 16", // RX LNA (IF) gain, 0-40dB, 8dB steps
		"-g 20", // RX VGA (baseband) gain, 0-62dB, 2dB steps
	}
	cmd := exec.CommandContext(ctx, sweepAlias, args...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	glog.Infof("Running HackRF sweep: %q\n", cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("unable to start sweep: %w", err)
	}

	rawSamples := make(chan sdr.Sample)
	go func() {
		defer close(rawSamples)
		if err := s.scan(ctx, out, rawSamples); err != nil {
			glog.Warningf("error reading sweep output: %s\n", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Aggregate(ctx, opts.IntegrationInterval, rawSamples, samples)
	}()
	<-done

	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("sweep command ended with error: %w", err)
	}
	return ctx.Err()
}

func (s *SDR) scan(ctx context.Context, r io.Reader, rawSamples chan<- sdr.Sample) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		glog.V(3).Info(scanner.Text())
		row, err := sdr.ParseRow(scanner.Text(), s.Identifier, s.Name())
		if err != nil {
			glog.Warningf("error parsing line: %s\n", err)
			continue
		}
		for _, sample := range row {
			select {
			case rawSamples <- sample:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return scanner.Err()
}

// Aggregate merges raw samples per frequency bin and emits the aggregates
// every interval. Pending aggregates are flushed when rawSamples closes.
func (s *SDR) Aggregate(ctx context.Context, interval time.Duration, rawSamples <-chan sdr.Sample, samples chan<- sdr.Sample) {
	s.bucketsMu.Lock()
	s.buckets = map[int64]sdr.Sample{}
	s.bucketsMu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.flush(ctx, samples) {
				return
			}
		case sample, ok := <-rawSamples:
			if !ok {
				s.flush(ctx, samples)
				return
			}
			s.add(sample)
		}
	}
}

func (s *SDR) add(sample sdr.Sample) {
	s.bucketsMu.Lock()
	defer s.bucketsMu.Unlock()

	stored, ok := s.buckets[sample.FreqCenter]
	if !ok {
		s.buckets[sample.FreqCenter] = sample
		return
	}
	stored.End = sample.End
	stored.DBAvg = (stored.DBAvg*float64(stored.SampleCount) + sample.DBAvg*float64(sample.SampleCount)) / float64(stored.SampleCount+sample.SampleCount)
	if sample.DBLow < stored.DBLow {
		stored.DBLow = sample.DBLow
	}
	if sample.DBHigh > stored.DBHigh {
		stored.DBHigh = sample.DBHigh
	}
	stored.SampleCount += sample.SampleCount
	s.buckets[sample.FreqCenter] = stored
}

// flush emits the current buckets ordered by frequency and starts new ones.
func (s *SDR) flush(ctx context.Context, samples chan<- sdr.Sample) bool {
	s.bucketsMu.Lock()
	old := s.buckets
	s.buckets = map[int64]sdr.Sample{}
	s.bucketsMu.Unlock()

	for _, sample := range sortedByFreq(old) {
		select {
		case samples <- sample:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func sortedByFreq(buckets map[int64]sdr.Sample) []sdr.Sample {
	out := make([]sdr.Sample, 0, len(buckets))
	for _, sample := range buckets {
		out = append(out, sample)
	}
	slices.SortFunc(out, func(a, b sdr.Sample) int {
		return cmp.Compare(a.FreqCenter, b.FreqCenter)
	})
	return out
}
