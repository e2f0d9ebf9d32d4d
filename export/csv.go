package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/hb9tf/rfmonitor/sdr"
)

type CSV struct {
	// W defaults to stdout.
	W io.Writer
}

func (c *CSV) Write(ctx context.Context, records <-chan sdr.Record) error {
	out := c.W
	if out == nil {
		out = os.Stdout
	}
	w := csv.NewWriter(out)
	w.Write([]string{
		"ID",
		"Identifier",
		"Source",
		"Freq",
		"Threshold",
		"Location",
		"StartUnixMilli",
		"EndUnixMilli",
		"Peak",
	})

	for r := range records {
		if err := w.Write([]string{
			r.ID,
			r.Identifier,
			r.Source,
			fmt.Sprintf("%d", r.Freq),
			fmt.Sprintf("%f", r.Threshold),
			r.Location,
			fmt.Sprintf("%d", r.Start.UnixMilli()),
			fmt.Sprintf("%d", r.End.UnixMilli()),
			fmt.Sprintf("%f", r.Peak),
		}); err != nil {
			glog.Warningf("error while writing CSV line: %s\n", err)
		}

		w.Flush()
		if err := w.Error(); err != nil {
			glog.Warningf("error flushing CSV: %s\n", err)
		}
	}
	w.Flush()
	return w.Error()
}
