package extraction

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/hb9tf/rfmonitor/monitor"
)

// levelMargin keeps the extremes off the image edges, in dB.
const levelMargin = 5.0

// RenderLevels draws a level history as columns with the threshold as a
// horizontal line.
func RenderLevels(samples []monitor.Sample, threshold float64, opts *ImageOptions) (image.Image, error) {
	if err := checkSize(opts); err != nil {
		return nil, err
	}

	lo, hi := threshold, threshold
	for _, s := range samples {
		lo = math.Min(lo, s.Level)
		hi = math.Max(hi, s.Level)
	}
	lo -= levelMargin
	hi += levelMargin

	canvas := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{rowBackgroundColor}, image.Point{}, draw.Src)

	yOf := func(v float64) int {
		return int((hi - v) / (hi - lo) * float64(opts.Height-1))
	}
	for i, s := range samples {
		x0 := i * opts.Width / len(samples)
		x1 := (i + 1) * opts.Width / len(samples)
		if x1 == x0 {
			x1 = x0 + 1
		}
		col := image.Rect(x0, yOf(s.Level), x1, opts.Height)
		draw.Draw(canvas, col, &image.Uniform{GetColor(level(s.Level, lo, hi))}, image.Point{}, draw.Src)
	}

	ty := yOf(threshold)
	for x := 0; x < opts.Width; x++ {
		canvas.SetRGBA(x, ty, thresholdColor)
	}

	if !opts.AddGrid {
		return canvas, nil
	}
	return DrawGrid(canvas,
		func(x int) string {
			if len(samples) == 0 {
				return ""
			}
			i := min(x*len(samples)/opts.Width, len(samples)-1)
			return samples[i].Timestamp.Format("15:04:05")
		},
		func(y int) string {
			return fmt.Sprintf("%.1f dB", hi-float64(y)/float64(opts.Height-1)*(hi-lo))
		},
		0,
	), nil
}
