package monitor

import (
	"time"
)

// Location identifies where a signal was captured. Its content is up to the
// caller, the collector uses a Maidenhead locator.
type Location string

// Signal is one contiguous excursion at or above the threshold.
type Signal struct {
	Location Location  `json:"location"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Peak     float64   `json:"peak"`
}

func (s Signal) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

type State int

const (
	Idle State = iota
	Open
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Open:
		return "open"
	}
	return "unknown"
}

// Detector turns a level stream into signals. It is not safe for concurrent
// use and expects non-decreasing timestamps.
type Detector struct {
	state   State
	current Signal
	last    float64
}

// Observe feeds one level reading to the detector. A level equal to the
// threshold counts as above it. A signal is returned only when an excursion
// closes while isRecording is set; excursions closing while not recording
// are dropped.
func (d *Detector) Observe(level float64, timestamp time.Time, location Location, isRecording bool, threshold float64) (Signal, bool) {
	d.last = level

	if level >= threshold {
		if d.state == Idle {
			d.state = Open
			d.current = Signal{
				Location: location,
				Start:    timestamp,
				End:      timestamp,
				Peak:     level,
			}
			return Signal{}, false
		}
		d.current.End = timestamp
		if level > d.current.Peak {
			d.current.Peak = level
		}
		return Signal{}, false
	}

	if d.state == Idle {
		return Signal{}, false
	}
	signal := d.current
	d.state = Idle
	d.current = Signal{}
	return signal, isRecording
}

// Reset drops any open excursion.
func (d *Detector) Reset() {
	d.state = Idle
	d.current = Signal{}
	d.last = 0
}

func (d *Detector) State() State {
	return d.state
}

// Current returns the excursion being tracked, if any.
func (d *Detector) Current() (Signal, bool) {
	return d.current, d.state == Open
}

// LastLevel is the level of the most recent observation.
func (d *Detector) LastLevel() float64 {
	return d.last
}
