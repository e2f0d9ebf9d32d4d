package export

import (
	"context"

	"github.com/hb9tf/rfmonitor/sdr"
)

// Exporter consumes records until the channel is closed.
type Exporter interface {
	Write(context.Context, <-chan sdr.Record) error
}

// counts tracks export outcomes for periodic progress logging.
type counts map[string]int

func newCounts() counts {
	return counts{
		"error":   0,
		"success": 0,
		"total":   0,
	}
}

func (c counts) failed() {
	c["total"] += 1
	c["error"] += 1
}

// succeeded records a successful export and reports whether it is time to
// log progress.
func (c counts) succeeded(every int) bool {
	c["total"] += 1
	c["success"] += 1
	return every > 0 && c["total"]%every == 0
}
