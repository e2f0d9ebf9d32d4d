// Package monitor detects signals on a single monitored frequency.
//
// A Monitor owns the recent level history, the detector state and the set of
// recorded signals of one frequency. It is not safe for concurrent use, hosts
// sharing a Monitor between goroutines need to serialize access themselves.
package monitor

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

const (
	// LevelMin and LevelMax bound the thresholds accepted by default, in dB.
	LevelMin = -100.0
	LevelMax = 20.0

	// MaxLevelsTime is the default span of the level history in seconds.
	MaxLevelsTime = 10.0
	// SampleRate is the default capture sample rate in samples per second.
	SampleRate = 2.4e6
	// Samples is the default number of capture samples per level reading.
	Samples = 65536
)

var (
	ErrOutOfOrder       = errors.New("sample timestamp is before the previous sample")
	ErrThresholdRange   = errors.New("threshold out of range")
	ErrUnknownFrequency = errors.New("frequency is not in the allowed set")
	ErrNoFrequencies    = errors.New("no frequencies given")
	ErrNoOptions        = errors.New("no monitor options given")
)

type Options struct {
	// Frequency to monitor in Hz.
	Frequency int64
	// Frequencies restricts what SetFrequency accepts. Empty allows any.
	Frequencies []int64

	Threshold float64
	Recording bool

	// LevelMin and LevelMax bound the threshold. Both zero selects the
	// package defaults.
	LevelMin float64
	LevelMax float64

	// HistorySize is the capacity of the level history, see Capacity.
	HistorySize int
}

// DefaultOptions returns options using the package defaults for freq.
func DefaultOptions(freq int64) *Options {
	return &Options{
		Frequency:   freq,
		Threshold:   LevelMin,
		LevelMin:    LevelMin,
		LevelMax:    LevelMax,
		HistorySize: Capacity(MaxLevelsTime, SampleRate, Samples),
	}
}

type Monitor struct {
	freq      int64
	freqs     []int64
	threshold float64
	recording bool
	levelMin  float64
	levelMax  float64

	history  *History
	detector Detector
	signals  []Signal
	lastSeen time.Time
}

func New(opts *Options) (*Monitor, error) {
	if opts == nil {
		return nil, ErrNoOptions
	}
	m := &Monitor{
		freq:      opts.Frequency,
		recording: opts.Recording,
		levelMin:  opts.LevelMin,
		levelMax:  opts.LevelMax,
		history:   NewHistory(opts.HistorySize),
	}
	if m.levelMin == 0 && m.levelMax == 0 {
		m.levelMin, m.levelMax = LevelMin, LevelMax
	}
	if m.levelMin > m.levelMax {
		return nil, fmt.Errorf("level bounds are inverted: min %.1f > max %.1f", m.levelMin, m.levelMax)
	}
	if len(opts.Frequencies) > 0 {
		m.freqs = slices.Clone(opts.Frequencies)
		if !slices.Contains(m.freqs, m.freq) {
			return nil, fmt.Errorf("%w: %d Hz", ErrUnknownFrequency, m.freq)
		}
	}
	if err := m.SetThreshold(opts.Threshold); err != nil {
		return nil, err
	}
	return m, nil
}

// Observe records a new level reading. When it closes an excursion while
// recording, the resulting signal is appended to the recorded signals and
// returned. Samples older than the previous one are rejected.
func (m *Monitor) Observe(level float64, timestamp time.Time, location Location) (*Signal, error) {
	if timestamp.Before(m.lastSeen) {
		return nil, fmt.Errorf("%w: %s < %s", ErrOutOfOrder, timestamp.Format(time.RFC3339Nano), m.lastSeen.Format(time.RFC3339Nano))
	}
	m.lastSeen = timestamp

	m.history.Push(Sample{Level: level, Timestamp: timestamp})
	signal, ok := m.detector.Observe(level, timestamp, location, m.recording, m.threshold)
	if !ok {
		return nil, nil
	}
	m.signals = append(m.signals, signal)
	return &signal, nil
}

// SetThreshold changes the threshold used from the next observation on.
func (m *Monitor) SetThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < m.levelMin || threshold > m.levelMax {
		return fmt.Errorf("%w: %.1f not within [%.1f, %.1f]", ErrThresholdRange, threshold, m.levelMin, m.levelMax)
	}
	m.threshold = threshold
	return nil
}

func (m *Monitor) Threshold() float64 {
	return m.threshold
}

// LevelBounds returns the accepted threshold range.
func (m *Monitor) LevelBounds() (float64, float64) {
	return m.levelMin, m.levelMax
}

// SetFrequency switches to freq and resets the history, the detector and the
// recorded signals.
func (m *Monitor) SetFrequency(freq int64) error {
	if len(m.freqs) > 0 && !slices.Contains(m.freqs, freq) {
		return fmt.Errorf("%w: %d Hz", ErrUnknownFrequency, freq)
	}
	m.freq = freq
	m.reset()
	return nil
}

func (m *Monitor) Frequency() int64 {
	return m.freq
}

// SetFrequencies replaces the allowed frequencies and switches to the middle
// one of them.
func (m *Monitor) SetFrequencies(freqs []int64) error {
	if len(freqs) == 0 {
		return ErrNoFrequencies
	}
	m.freqs = slices.Clone(freqs)
	return m.SetFrequency(m.freqs[len(m.freqs)/2])
}

func (m *Monitor) Frequencies() []int64 {
	return slices.Clone(m.freqs)
}

// FrequencyLocked reports whether changing the frequency would lose a
// recording in progress or recorded signals.
func (m *Monitor) FrequencyLocked() bool {
	return m.recording || len(m.signals) > 0
}

func (m *Monitor) SetRecording(recording bool) {
	m.recording = recording
}

func (m *Monitor) Recording() bool {
	return m.recording
}

// ClearSignals drops the recorded signals together with any open excursion
// and the level history.
func (m *Monitor) ClearSignals() {
	m.reset()
}

// DropExcursion abandons an open excursion without emitting it. Recorded
// signals and the level history are kept.
func (m *Monitor) DropExcursion() {
	m.detector.Reset()
}

// SetSignals replaces the recorded signals, e.g. when restoring a session.
func (m *Monitor) SetSignals(signals []Signal) {
	m.signals = slices.Clone(signals)
}

// Signals returns a copy of the recorded signals in the order they ended.
func (m *Monitor) Signals() []Signal {
	return slices.Clone(m.signals)
}

func (m *Monitor) SignalCount() int {
	return len(m.signals)
}

// Levels returns the level history, oldest first.
func (m *Monitor) Levels() []Sample {
	return m.history.Samples()
}

func (m *Monitor) HistoryCap() int {
	return m.history.Cap()
}

func (m *Monitor) State() State {
	return m.detector.State()
}

// Level is the most recently observed level.
func (m *Monitor) Level() float64 {
	return m.detector.LastLevel()
}

func (m *Monitor) reset() {
	m.history.Clear()
	m.detector.Reset()
	m.signals = nil
	m.lastSeen = time.Time{}
}
