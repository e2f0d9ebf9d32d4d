package sdr

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hb9tf/rfmonitor/monitor"
)

// Record is a finalized signal as it is exported and stored.
type Record struct {
	ID         string
	Identifier string
	Source     string

	Freq      int64
	Threshold float64
	Location  string
	Start     time.Time
	End       time.Time
	Peak      float64
}

func NewRecord(identifier, source string, freq int64, threshold float64, s monitor.Signal) Record {
	return Record{
		ID:         uuid.NewString(),
		Identifier: identifier,
		Source:     source,
		Freq:       freq,
		Threshold:  threshold,
		Location:   string(s.Location),
		Start:      s.Start,
		End:        s.End,
		Peak:       s.Peak,
	}
}

func (r Record) String() string {
	return fmt.Sprintf("%s@%d %s..%s peak %.1f dB", r.Identifier, r.Freq, r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339), r.Peak)
}
