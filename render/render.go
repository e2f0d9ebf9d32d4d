package main

/*
This application renders a timeline of the signals recorded by rfmonitor
collectors into a SQL store: one row per frequency, one bar per signal.
*/

import (
	"flag"
	"fmt"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/rfmonitor/export"
	"github.com/hb9tf/rfmonitor/extraction"
)

// Flags
var (
	dialect           = flag.String("db", export.DialectSQLite, "DB type holding the signals (one of: sqlite3, mysql, postgres).")
	sqliteFile        = flag.String("sqliteFile", "/tmp/rfmonitor", "File path of the sqlite DB file to use.")
	mysqlServer       = flag.String("mysqlServer", "127.0.0.1:3306", "MySQL TCP server endpoint to connect to (IP/DNS and port).")
	mysqlUser         = flag.String("mysqlUser", "", "MySQL DB user.")
	mysqlPasswordFile = flag.String("mysqlPasswordFile", "", "Path to the file containing the password for the MySQL user.")
	mysqlDBName       = flag.String("mysqlDBName", "rfmonitor", "Name of the DB to use.")
	postgresDSN       = flag.String("postgresDSN", "postgres://localhost:5432/rfmonitor?sslmode=disable", "Postgres connection URL or DSN.")

	identifier   = flag.String("identifier", "%", "Select signals of this collector, SQL LIKE pattern.")
	startFreq    = flag.Int64("startFreq", 0, "Select signals starting with this frequency in Hz.")
	endFreq      = flag.Int64("endFreq", math.MaxInt64, "Select signals up to this frequency in Hz.")
	startTimeRaw = flag.String("startTime", "2000-01-02T15:04:05", "Select signals recorded after this time. Format: 2006-01-02T15:04:05")
	endTimeRaw   = flag.String("endTime", "2100-01-02T15:04:05", "Select signals recorded before this time. Format: 2006-01-02T15:04:05")
	imgPath      = flag.String("imgPath", "/tmp/rfmonitor.png", "Path where the rendered image should be written to.")
	imgWidth     = flag.Int("imgWidth", 1024, "Width of output image in pixels.")
	imgHeight    = flag.Int("imgHeight", 480, "Height of output image in pixels.")
	addGrid      = flag.Bool("addGrid", true, "Add time and frequency labels around the image.")
)

const timeFmt = "2006-01-02T15:04:05"

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	startTime, err := time.Parse(timeFmt, *startTimeRaw)
	if err != nil {
		glog.Exitf("unable to parse startTime (value: %q, format: %q): %s", *startTimeRaw, timeFmt, err)
	}
	endTime, err := time.Parse(timeFmt, *endTimeRaw)
	if err != nil {
		glog.Exitf("unable to parse endTime (value: %q, format: %q): %s", *endTimeRaw, timeFmt, err)
	}

	db, err := export.OpenDB(&export.DBConfig{
		Dialect:           *dialect,
		SQLiteFile:        *sqliteFile,
		MySQLServer:       *mysqlServer,
		MySQLUser:         *mysqlUser,
		MySQLPasswordFile: *mysqlPasswordFile,
		MySQLDBName:       *mysqlDBName,
		PostgresDSN:       *postgresDSN,
	})
	if err != nil {
		glog.Exit(err)
	}
	defer db.Close()

	res, err := extraction.Render(db, *dialect, &extraction.RenderRequest{
		Filter: &extraction.FilterOptions{
			Identifier: *identifier,
			StartFreq:  *startFreq,
			EndFreq:    *endFreq,
			StartTime:  startTime,
			EndTime:    endTime,
		},
		Image: &extraction.ImageOptions{
			Width:   *imgWidth,
			Height:  *imgHeight,
			AddGrid: *addGrid,
		},
	})
	if err != nil {
		glog.Exitf("unable to render timeline: %s", err)
	}

	fmt.Println("Selected source metadata:")
	fmt.Printf("  - Low frequency: %s\n", extraction.GetReadableFreq(res.SourceMeta.LowFreq))
	fmt.Printf("  - High frequency: %s\n", extraction.GetReadableFreq(res.SourceMeta.HighFreq))
	fmt.Printf("  - Start time: %s (%d)\n", res.SourceMeta.StartTime.Format(timeFmt), res.SourceMeta.StartTime.Unix())
	fmt.Printf("  - End time: %s (%d)\n", res.SourceMeta.EndTime.Format(timeFmt), res.SourceMeta.EndTime.Unix())
	fmt.Printf("  - Duration: %s\n", res.SourceMeta.EndTime.Sub(res.SourceMeta.StartTime))
	fmt.Printf("  - Signals: %d\n", res.SourceMeta.Signals)
	fmt.Println("Image metadata:")
	fmt.Printf("  - Size: %d x %d\n", res.ImageMeta.ImageWidth, res.ImageMeta.ImageHeight)
	fmt.Printf("  - Row height: %d px\n", res.ImageMeta.RowHeight)
	fmt.Printf("  - Time per pixel: %.2f s\n", res.ImageMeta.SecPerPixel)

	fmt.Printf("Writing image to %q\n", *imgPath)
	f, err := os.Create(*imgPath)
	if err != nil {
		glog.Exitf("unable to create %q: %s", *imgPath, err)
	}
	defer f.Close()
	switch {
	case strings.HasSuffix(*imgPath, ".png"):
		err = png.Encode(f, res.Image)
	case strings.HasSuffix(*imgPath, ".jpg"), strings.HasSuffix(*imgPath, ".jpeg"):
		err = jpeg.Encode(f, res.Image, &jpeg.Options{Quality: jpeg.DefaultQuality})
	default:
		err = fmt.Errorf("unsupported image type, use .png or .jpg")
	}
	if err != nil {
		glog.Errorf("unable to write image: %s", err)
	}
}
