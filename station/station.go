// Package station hosts the monitors of one receiver. It routes sweep
// samples to them and serializes access to each monitor so they can be
// driven from the sweep and from the HTTP API at the same time.
package station

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hb9tf/rfmonitor/monitor"
	"github.com/hb9tf/rfmonitor/sdr"
)

var (
	ErrNotFound   = errors.New("frequency is not monitored")
	ErrExists     = errors.New("frequency is already monitored")
	ErrHasSignals = errors.New("monitor holds recorded signals")
	ErrLocked     = errors.New("frequency can't change while recording or holding signals")
	ErrNotCovered = errors.New("frequency is outside of the swept band")
)

type entry struct {
	mu      sync.Mutex
	m       *monitor.Monitor
	enabled bool
	// removed is set once the entry left the station.
	removed bool
}

// Status is a snapshot of a monitor.
type Status struct {
	Freq        int64   `json:"freq"`
	Freqs       []int64 `json:"freqs,omitempty"`
	Threshold   float64 `json:"threshold"`
	LevelMin    float64 `json:"levelMin"`
	LevelMax    float64 `json:"levelMax"`
	Level       float64 `json:"level"`
	Recording   bool    `json:"recording"`
	Enabled     bool    `json:"enabled"`
	State       string  `json:"state"`
	SignalCount int     `json:"signalCount"`
}

type Options struct {
	Identifier string
	Source     string
	Location   monitor.Location

	// Defaults provides level bounds and history size for monitors added
	// through the API.
	Defaults monitor.Options

	// Span is the band the radio sweeps. Monitors outside of it are
	// refused. Nil accepts any frequency.
	Span *sdr.Options

	// Registry defaults to a new private registry.
	Registry prometheus.Registerer
}

type Station struct {
	identifier string
	source     string
	defaults   monitor.Options
	span       *sdr.Options
	metrics    *Metrics

	mu       sync.RWMutex
	location monitor.Location
	monitors map[int64]*entry
}

func New(opts *Options) *Station {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Station{
		identifier: opts.Identifier,
		source:     opts.Source,
		location:   opts.Location,
		defaults:   opts.Defaults,
		span:       opts.Span,
		metrics:    NewMetrics(reg),
		monitors:   map[int64]*entry{},
	}
}

func (s *Station) Identifier() string {
	return s.identifier
}

// Defaults returns a copy of the options used for monitors added through the
// API.
func (s *Station) Defaults() monitor.Options {
	return s.defaults
}

func (s *Station) SetLocation(loc monitor.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = loc
}

func (s *Station) Location() monitor.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location
}

// covered checks that the radio sweeps across all of freqs.
func (s *Station) covered(freqs ...int64) error {
	if s.span == nil {
		return nil
	}
	for _, freq := range freqs {
		if freq < s.span.LowFreq || freq > s.span.HighFreq {
			return fmt.Errorf("%w: %d Hz not within %d..%d Hz", ErrNotCovered, freq, s.span.LowFreq, s.span.HighFreq)
		}
	}
	return nil
}

// Add creates a monitor for opts.Frequency.
func (s *Station) Add(opts *monitor.Options, enabled bool) error {
	m, err := monitor.New(opts)
	if err != nil {
		return err
	}
	if err := s.covered(append([]int64{m.Frequency()}, m.Frequencies()...)...); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.monitors[m.Frequency()]; ok {
		return fmt.Errorf("%w: %d Hz", ErrExists, m.Frequency())
	}
	s.monitors[m.Frequency()] = &entry{m: m, enabled: enabled}
	s.metrics.observed(m.Frequency(), m.Level(), m.Threshold())
	glog.Infof("monitoring %d Hz (threshold %.1f dB, recording %t, enabled %t)", m.Frequency(), m.Threshold(), m.Recording(), enabled)
	return nil
}

// Remove stops monitoring freq. Monitors holding signals are only removed
// when forced.
func (s *Station) Remove(freq int64, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.monitors[freq]
	if !ok {
		return fmt.Errorf("%w: %d Hz", ErrNotFound, freq)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if n := e.m.SignalCount(); n > 0 && !force {
		return fmt.Errorf("%w: %d signals on %d Hz would be lost", ErrHasSignals, n, freq)
	}
	e.m.ClearSignals()
	e.removed = true
	delete(s.monitors, freq)
	s.metrics.forget(freq)
	glog.Infof("stopped monitoring %d Hz", freq)
	return nil
}

func (s *Station) get(freq int64) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.monitors[freq]
	if !ok {
		return nil, fmt.Errorf("%w: %d Hz", ErrNotFound, freq)
	}
	return e, nil
}

// lock returns the entry of freq locked. The entry may have been removed or
// moved to another frequency between the lookup and the lock.
func (s *Station) lock(freq int64) (*entry, error) {
	e, err := s.get(freq)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if e.removed || e.m.Frequency() != freq {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %d Hz", ErrNotFound, freq)
	}
	return e, nil
}

// Do runs fn with exclusive access to the monitor of freq. fn must not
// change the frequency of the monitor, use ChangeFrequency for that.
func (s *Station) Do(freq int64, fn func(m *monitor.Monitor) error) error {
	e, err := s.lock(freq)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	if err := fn(e.m); err != nil {
		return err
	}
	s.metrics.threshold.WithLabelValues(freqLabel(freq)).Set(e.m.Threshold())
	return nil
}

// SetEnabled pauses or resumes observing freq. A disabled monitor reports
// the lowest level and abandons its open excursion, as it can't see the
// excursion end.
func (s *Station) SetEnabled(freq int64, enabled bool) error {
	e, err := s.lock(freq)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	e.enabled = enabled
	if !enabled {
		e.m.DropExcursion()
		lo, _ := e.m.LevelBounds()
		s.metrics.observed(freq, lo, e.m.Threshold())
	}
	return nil
}

// ChangeFrequency moves the monitor of freq to newFreq, dropping its history
// and signals. Without force this is refused while it is recording or holds
// signals.
func (s *Station) ChangeFrequency(freq, newFreq int64, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.monitors[freq]
	if !ok {
		return fmt.Errorf("%w: %d Hz", ErrNotFound, freq)
	}
	if _, ok := s.monitors[newFreq]; ok && newFreq != freq {
		return fmt.Errorf("%w: %d Hz", ErrExists, newFreq)
	}
	if err := s.covered(newFreq); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.m.FrequencyLocked() && !force {
		return fmt.Errorf("%w: %d Hz", ErrLocked, freq)
	}
	if err := e.m.SetFrequency(newFreq); err != nil {
		return err
	}
	delete(s.monitors, freq)
	s.monitors[newFreq] = e
	s.metrics.forget(freq)
	s.metrics.observed(newFreq, e.m.Level(), e.m.Threshold())
	glog.Infof("monitor moved from %d Hz to %d Hz", freq, newFreq)
	return nil
}

func statusOf(e *entry) Status {
	lo, hi := e.m.LevelBounds()
	level := e.m.Level()
	if !e.enabled {
		level = lo
	}
	return Status{
		Freq:        e.m.Frequency(),
		Freqs:       e.m.Frequencies(),
		Threshold:   e.m.Threshold(),
		LevelMin:    lo,
		LevelMax:    hi,
		Level:       level,
		Recording:   e.m.Recording(),
		Enabled:     e.enabled,
		State:       e.m.State().String(),
		SignalCount: e.m.SignalCount(),
	}
}

func (s *Station) Status(freq int64) (Status, error) {
	e, err := s.lock(freq)
	if err != nil {
		return Status{}, err
	}
	defer e.mu.Unlock()
	return statusOf(e), nil
}

// List returns the status of all monitors ordered by frequency.
func (s *Station) List() []Status {
	entries := s.entries()
	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			out = append(out, statusOf(e))
		}
		e.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b Status) int {
		switch {
		case a.Freq < b.Freq:
			return -1
		case a.Freq > b.Freq:
			return 1
		}
		return 0
	})
	return out
}

// Freqs returns the monitored frequencies in ascending order.
func (s *Station) Freqs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int64
	for freq := range s.monitors {
		out = append(out, freq)
	}
	slices.Sort(out)
	return out
}

func (s *Station) entries() []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entry, 0, len(s.monitors))
	for _, e := range s.monitors {
		out = append(out, e)
	}
	return out
}

// ShouldIgnore implements filter.Filterer, ignoring samples no monitor
// covers.
func (s *Station) ShouldIgnore(sample *sdr.Sample) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for freq := range s.monitors {
		if sample.Covers(freq) {
			return false
		}
	}
	return true
}

// Observe feeds sample to every enabled monitor whose frequency it covers
// and returns the signals recorded as a result.
func (s *Station) Observe(sample sdr.Sample) []sdr.Record {
	location := s.Location()

	var records []sdr.Record
	for _, e := range s.entries() {
		e.mu.Lock()
		if r, ok := s.observe(e, sample, location); ok {
			records = append(records, r)
		}
		e.mu.Unlock()
	}
	return records
}

func (s *Station) observe(e *entry, sample sdr.Sample, location monitor.Location) (sdr.Record, bool) {
	freq := e.m.Frequency()
	if e.removed || !e.enabled || !sample.Covers(freq) {
		return sdr.Record{}, false
	}

	wasOpen := e.m.State() == monitor.Open
	threshold := e.m.Threshold()
	signal, err := e.m.Observe(sample.DBAvg, sample.End, location)
	if err != nil {
		s.metrics.reject(freq)
		glog.V(2).Infof("monitor %d Hz rejected sample: %s", freq, err)
		return sdr.Record{}, false
	}
	s.metrics.observed(freq, sample.DBAvg, threshold)

	if signal == nil {
		if wasOpen && e.m.State() == monitor.Idle {
			s.metrics.signal(freq, false)
			glog.V(1).Infof("monitor %d Hz discarded a signal while not recording", freq)
		}
		return sdr.Record{}, false
	}
	s.metrics.signal(freq, true)
	r := sdr.NewRecord(s.identifier, s.source, freq, threshold, *signal)
	glog.V(1).Infof("recorded signal %s", r)
	return r, true
}

// Feed observes samples until the channel closes or ctx is done, sending
// recorded signals to records.
func (s *Station) Feed(ctx context.Context, samples <-chan sdr.Sample, records chan<- sdr.Record) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, ok := <-samples:
			if !ok {
				return nil
			}
			for _, r := range s.Observe(sample) {
				select {
				case records <- r:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
