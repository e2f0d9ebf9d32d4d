package extraction

import (
	"database/sql"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/hb9tf/rfmonitor/export"
	"github.com/hb9tf/rfmonitor/sdr"
)

var (
	// Colors defining the gradient in the heatmap. The higher the index, the warmer.
	colors = []color.RGBA{
		{0, 0, 0, 255},       // black
		{0, 0, 255, 255},     // blue
		{0, 255, 255, 255},   // cyan
		{0, 255, 0, 255},     // green
		{255, 255, 0, 255},   // yellow
		{255, 0, 0, 255},     // red
		{255, 255, 255, 255}, // white
	}

	gridColor           = color.RGBA{0, 0, 0, 255}       // black
	gridBackgroundColor = color.RGBA{255, 255, 255, 255} // white
	rowBackgroundColor  = color.RGBA{24, 24, 24, 255}
	thresholdColor      = color.RGBA{255, 0, 0, 255}

	expSuffixLookup = map[int]string{
		0: "Hz",  // 10^0
		1: "kHz", // 10^3
		2: "MHz", // 10^6
		3: "GHz", // 10^9
		4: "THz", // 10^12
	}
)

const (
	timeFmt        = "2006-01-02T15:04:05"
	gridMarginTop  = 20  // pixels
	gridMarginLeft = 150 // pixels
	gridTickLen    = 10  // pixel
	gridMinStepX   = 100 // pixels
	gridMinStepY   = 20  // pixels

	getSignalsTmpl = `SELECT
		ID,
		Identifier,
		Source,
		Freq,
		Threshold,
		Location,
		StartTime,
		EndTime,
		Peak
	FROM
		signals
	WHERE
		Identifier LIKE ?
		AND Freq >= ?
		AND Freq <= ?
		AND StartTime >= ?
		AND EndTime <= ?
	ORDER BY
		StartTime ASC,
		Freq ASC;`
)

type FilterOptions struct {
	// Identifier is matched with LIKE, "%" selects all.
	Identifier string
	StartFreq  int64
	EndFreq    int64
	StartTime  time.Time
	EndTime    time.Time
}

type ImageOptions struct {
	Height int
	Width  int

	AddGrid bool
}

type RenderRequest struct {
	Filter *FilterOptions
	Image  *ImageOptions
}

type SourceMetadata struct {
	LowFreq   int64
	HighFreq  int64
	StartTime time.Time
	EndTime   time.Time
	Signals   int
}

type RenderMetadata struct {
	ImageHeight int
	ImageWidth  int
	RowHeight   int
	SecPerPixel float64
}

type RenderResult struct {
	Image image.Image

	SourceMeta *SourceMetadata
	ImageMeta  *RenderMetadata
}

// QuerySignals reads the stored signals matching filter, oldest first.
func QuerySignals(db *sql.DB, dialect string, filter *FilterOptions) ([]sdr.Record, error) {
	identifier := filter.Identifier
	if identifier == "" {
		identifier = "%"
	}
	rows, err := db.Query(export.Rebind(dialect, getSignalsTmpl), identifier, filter.StartFreq, filter.EndFreq, filter.StartTime.UnixMilli(), filter.EndTime.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []sdr.Record
	for rows.Next() {
		var r sdr.Record
		var start, end int64
		if err := rows.Scan(&r.ID, &r.Identifier, &r.Source, &r.Freq, &r.Threshold, &r.Location, &start, &end, &r.Peak); err != nil {
			return nil, fmt.Errorf("unable to read signal from DB: %w", err)
		}
		r.Start = time.UnixMilli(start).UTC()
		r.End = time.UnixMilli(end).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetColor determines the color of a pixel based on a color gradient and a pixel "level".
// http://www.andrewnoske.com/wiki/Code_-_heatmaps_and_color_gradients
func GetColor(lvl uint16) color.RGBA {
	// Find the two colors in the gradient the level lies between and blend
	// them according to how far along it is.
	pos := float64(lvl) / math.MaxUint16 * float64(len(colors)-1)
	i := int(pos)
	if i >= len(colors)-1 {
		return colors[len(colors)-1]
	}
	fract := pos - float64(i)
	prevC, nextC := colors[i], colors[i+1]
	blend := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*fract))
	}
	return color.RGBA{
		blend(prevC.R, nextC.R),
		blend(prevC.G, nextC.G),
		blend(prevC.B, nextC.B),
		blend(prevC.A, nextC.A),
	}
}

// level maps v within [lo, hi] onto the color gradient.
func level(v, lo, hi float64) uint16 {
	if hi <= lo {
		return math.MaxUint16
	}
	f := (v - lo) / (hi - lo)
	return uint16(math.Max(0, math.Min(1, f)) * math.MaxUint16)
}

func GetReadableFreq(freq int64) string {
	exp := 0
	for f := float64(freq); f >= 1000; f = f / 1000.0 {
		exp += 1
	}
	suffix, ok := expSuffixLookup[exp]
	if !ok {
		return fmt.Sprintf("%d Hz", freq)
	}
	return fmt.Sprintf("%.2f %s", float64(freq)/math.Pow(1000, float64(exp)), suffix)
}

func drawTick(canvas *image.RGBA, start image.Point, length int, horizontal bool) {
	for i := 0; i <= length; i++ {
		if horizontal {
			canvas.SetRGBA(start.X+i, start.Y, gridColor)
		} else {
			canvas.SetRGBA(start.X, start.Y+i, gridColor)
		}
	}
}

func drawLabel(canvas *image.RGBA, x, y int, label string) {
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(gridColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}

func findGridStepSize(step int, horizontal bool) int {
	gridMinStep := gridMinStepY
	if horizontal {
		gridMinStep = gridMinStepX
	}
	for step > gridMinStep {
		n := step / 2
		if n < gridMinStep {
			return step
		}
		step = n
	}
	return max(step, 1)
}

// DrawGrid adds margins with ticks to source. xLabel and yLabel name the
// pixel column or row a tick points at; yStep of 0 picks a step size.
func DrawGrid(source *image.RGBA, xLabel, yLabel func(int) string, yStep int) *image.RGBA {
	// Enlarge existing image.
	canvas := image.NewRGBA(image.Rectangle{
		Min: source.Bounds().Min,
		Max: image.Point{source.Bounds().Max.X + gridMarginLeft, source.Bounds().Max.Y + gridMarginTop},
	})
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{gridBackgroundColor}, canvas.Bounds().Min, draw.Src)
	r := canvas.Bounds()
	r.Min.X += gridMarginLeft
	r.Min.Y += gridMarginTop
	draw.Draw(canvas, r, source, source.Bounds().Min, draw.Src)

	// Draw X ticks.
	xStep := findGridStepSize(source.Bounds().Dx(), true)
	for i := source.Bounds().Min.X; i < source.Bounds().Max.X; i += xStep {
		drawTick(canvas, image.Point{
			canvas.Bounds().Min.X + gridMarginLeft + i,
			canvas.Bounds().Min.Y + gridMarginTop - gridTickLen,
		}, gridTickLen, false)
		drawLabel(canvas, canvas.Bounds().Min.X+gridMarginLeft+i+5, canvas.Bounds().Min.Y+gridMarginTop-2, xLabel(i))
	}

	// Draw Y ticks.
	if yStep <= 0 {
		yStep = findGridStepSize(source.Bounds().Dy(), false)
	}
	for i := source.Bounds().Min.Y; i < source.Bounds().Max.Y; i += yStep {
		drawTick(canvas, image.Point{
			canvas.Bounds().Min.X + gridMarginLeft - gridTickLen,
			canvas.Bounds().Min.Y + gridMarginTop + i,
		}, gridTickLen, true)
		drawLabel(canvas, canvas.Bounds().Min.X+5, canvas.Bounds().Min.Y+gridMarginTop+i+13, yLabel(i))
	}

	return canvas
}

// Render queries the signals selected by req and draws their timeline.
func Render(db *sql.DB, dialect string, req *RenderRequest) (*RenderResult, error) {
	records, err := QuerySignals(db, dialect, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("unable to query DB for signals: %w", err)
	}
	return RenderTimeline(records, req.Image)
}
