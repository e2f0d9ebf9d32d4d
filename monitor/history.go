package monitor

import (
	"math"
	"time"
)

// Sample is a single level reading of a monitored frequency.
type Sample struct {
	Level     float64   `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// Capacity calculates how many samples fit into a history window of
// windowSeconds when one sample is produced every samplesPerPoint samples
// at sampleRate.
func Capacity(windowSeconds, sampleRate, samplesPerPoint float64) int {
	if samplesPerPoint == 0 {
		return 0
	}
	c := math.Round(windowSeconds * sampleRate / samplesPerPoint)
	if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 {
		return 0
	}
	return int(c)
}

// History is a fixed size ring buffer of the most recent samples.
// A zero capacity history drops everything pushed to it.
type History struct {
	buf  []Sample
	head int // next write position
	size int
}

func NewHistory(capacity int) *History {
	if capacity < 0 {
		capacity = 0
	}
	return &History{
		buf: make([]Sample, capacity),
	}
}

// Push appends s, evicting the oldest sample once the buffer is full.
func (h *History) Push(s Sample) {
	if len(h.buf) == 0 {
		return
	}
	h.buf[h.head] = s
	h.head = (h.head + 1) % len(h.buf)
	if h.size < len(h.buf) {
		h.size++
	}
}

func (h *History) Clear() {
	h.head = 0
	h.size = 0
}

func (h *History) Len() int {
	return h.size
}

func (h *History) Cap() int {
	return len(h.buf)
}

// Samples returns a copy of the buffered samples, oldest first.
func (h *History) Samples() []Sample {
	out := make([]Sample, h.size)
	start := (h.head - h.size + len(h.buf)) % max(len(h.buf), 1)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(start+i)%len(h.buf)]
	}
	return out
}

// Latest returns the most recently pushed sample.
func (h *History) Latest() (Sample, bool) {
	if h.size == 0 {
		return Sample{}, false
	}
	return h.buf[(h.head-1+len(h.buf))%len(h.buf)], true
}
