package rtlsdr

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/golang/glog"

	"github.com/hb9tf/rfmonitor/sdr"
)

const (
	SourceName = "rtl_sdr"
	sweepAlias = "rtl_power"
)

type SDR struct {
	Identifier string
}

func (s *SDR) Name() string {
	return SourceName
}

func (s *SDR) Sweep(ctx context.Context, opts *sdr.Options, samples chan<- sdr.Sample) error {
	args := []string{
		fmt.Sprintf("-f %d:%d:%d", opts.LowFreq, opts.HighFreq, opts.BinSize),
		fmt.Sprintf("-i %ds", max(int(opts.IntegrationInterval.Seconds()), 1)),
		"-", // dumps samples to stdout
	}
	cmd := exec.CommandContext(ctx, sweepAlias, args...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	glog.Infof("Running RTL SDR sweep: %q\n", cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("unable to start sweep: %w", err)
	}

	if err := s.Scan(ctx, out, samples); err != nil && ctx.Err() == nil {
		glog.Warningf("error reading sweep output: %s\n", err)
	}

	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("sweep command ended with error: %w", err)
	}
	return ctx.Err()
}

// Scan parses rtl_power output from r until EOF.
func (s *SDR) Scan(ctx context.Context, r io.Reader, samples chan<- sdr.Sample) error {
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
			case samples <- sample:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return scanner.Err()
}
