package extraction

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"slices"
	"time"

	"github.com/hb9tf/rfmonitor/sdr"
)

var ErrNoSignals = errors.New("no signals to render")

func checkSize(opts *ImageOptions) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", opts.Width, opts.Height)
	}
	return nil
}

// RenderTimeline draws one row per frequency and a bar per signal spanning
// its duration, colored by its peak level relative to all signals.
func RenderTimeline(records []sdr.Record, opts *ImageOptions) (*RenderResult, error) {
	if err := checkSize(opts); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoSignals
	}

	var freqs []int64
	sTime, eTime := records[0].Start, records[0].End
	minPeak, maxPeak := math.Inf(1), math.Inf(-1)
	for _, r := range records {
		if !slices.Contains(freqs, r.Freq) {
			freqs = append(freqs, r.Freq)
		}
		if r.Start.Before(sTime) {
			sTime = r.Start
		}
		if r.End.After(eTime) {
			eTime = r.End
		}
		minPeak = math.Min(minPeak, r.Peak)
		maxPeak = math.Max(maxPeak, r.Peak)
	}
	slices.Sort(freqs)
	span := eTime.Sub(sTime)
	if span <= 0 {
		span = time.Second
	}

	rowHeight := opts.Height / len(freqs)
	if rowHeight < 1 {
		return nil, fmt.Errorf("image height %d too small for %d frequencies", opts.Height, len(freqs))
	}

	canvas := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{rowBackgroundColor}, image.Point{}, draw.Src)

	xOf := func(t time.Time) int {
		return int(float64(t.Sub(sTime)) / float64(span) * float64(opts.Width-1))
	}
	for _, r := range records {
		row := slices.Index(freqs, r.Freq)
		x0, x1 := xOf(r.Start), xOf(r.End)
		bar := image.Rect(x0, row*rowHeight+1, x1+1, (row+1)*rowHeight-1)
		if bar.Dy() < 1 {
			bar.Max.Y = bar.Min.Y + 1
		}
		c := GetColor(level(r.Peak, minPeak, maxPeak))
		draw.Draw(canvas, bar, &image.Uniform{c}, image.Point{}, draw.Src)
	}

	result := &RenderResult{
		Image: canvas,
		SourceMeta: &SourceMetadata{
			LowFreq:   freqs[0],
			HighFreq:  freqs[len(freqs)-1],
			StartTime: sTime,
			EndTime:   eTime,
			Signals:   len(records),
		},
		ImageMeta: &RenderMetadata{
			ImageHeight: opts.Height,
			ImageWidth:  opts.Width,
			RowHeight:   rowHeight,
			SecPerPixel: span.Seconds() / float64(opts.Width),
		},
	}

	if opts.AddGrid {
		result.Image = DrawGrid(canvas,
			func(x int) string {
				return sTime.Add(time.Duration(float64(span) * float64(x) / float64(opts.Width))).Format(timeFmt)
			},
			func(y int) string {
				row := min(y/rowHeight, len(freqs)-1)
				return GetReadableFreq(freqs[row])
			},
			rowHeight,
		)
	}
	return result, nil
}
