package export

import (
	"time"

	"github.com/hb9tf/rfmonitor/sdr"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func testRecords(n int) []sdr.Record {
	var out []sdr.Record
	for i := 0; i < n; i++ {
		out = append(out, sdr.Record{
			ID:         string(rune('a' + i)),
			Identifier: "station",
			Source:     "hackrf",
			Freq:       433920000,
			Threshold:  -20,
			Location:   "JN47",
			Start:      t0.Add(time.Duration(i) * time.Minute),
			End:        t0.Add(time.Duration(i)*time.Minute + 2*time.Second),
			Peak:       -10 + float64(i),
		})
	}
	return out
}

func feed(records []sdr.Record) <-chan sdr.Record {
	ch := make(chan sdr.Record, len(records))
	for _, r := range records {
		ch <- r
	}
	close(ch)
	return ch
}
