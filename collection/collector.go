package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hb9tf/rfmonitor/collection/hackrf"
	"github.com/hb9tf/rfmonitor/collection/rtlsdr"
	"github.com/hb9tf/rfmonitor/config"
	"github.com/hb9tf/rfmonitor/export"
	"github.com/hb9tf/rfmonitor/filter"
	"github.com/hb9tf/rfmonitor/monitor"
	"github.com/hb9tf/rfmonitor/sdr"
	"github.com/hb9tf/rfmonitor/station"
)

// Flags
var (
	configFile          = flag.String("config", "", "Path of a YAML file defining the station and its monitors. Flags below override it where set.")
	identifier          = flag.String("id", "", "unique identifier of source instance (defaults to a random UUID)")
	locator             = flag.String("locator", "", "Maidenhead locator of the station, recorded with every signal.")
	freqs               = flag.String("freqs", "", "Comma separated list of frequencies in Hz to monitor when no config is given.")
	threshold           = flag.Float64("threshold", -30, "Detection threshold in dB for monitors defined via -freqs.")
	recording           = flag.Bool("recording", true, "Whether monitors defined via -freqs record signals right away.")
	lowFreq             = flag.Int64("lowFreq", 0, "Lower sweep boundary in Hz, widens the band derived from the monitors so monitors can be added at runtime.")
	highFreq            = flag.Int64("highFreq", 0, "Upper sweep boundary in Hz, widens the band derived from the monitors so monitors can be added at runtime.")
	binSize             = flag.Int64("binSize", 12500, "size of the bin in Hz")
	integrationInterval = flag.Duration("integrationInterval", time.Second, "duration to aggregate samples")
	sdrType             = flag.String("sdr", "", "SDR to use (one of: hackrf, rtlsdr)")
	output              = flag.String("output", "", "Export mechanism to use (one of: csv, sqlite, mysql, postgres, server, mqtt, redis)")
	listen              = flag.String("listen", ":8080", "Address to serve the control API and metrics on, empty disables it.")

	// SQL
	sqliteFile        = flag.String("sqliteFile", "/tmp/rfmonitor", "File path of the sqlite DB file to use.")
	mysqlServer       = flag.String("mysqlServer", "127.0.0.1:3306", "MySQL TCP server endpoint to connect to (IP/DNS and port).")
	mysqlUser         = flag.String("mysqlUser", "", "MySQL DB user.")
	mysqlPasswordFile = flag.String("mysqlPasswordFile", "", "Path to the file containing the password for the MySQL user.")
	mysqlDBName       = flag.String("mysqlDBName", "rfmonitor", "Name of the DB to use.")
	postgresDSN       = flag.String("postgresDSN", "postgres://localhost:5432/rfmonitor?sslmode=disable", "Postgres connection URL or DSN.")

	// rfmonitor server
	server        = flag.String("server", "https://localhost:8443", "URL scheme, address and port of the rfmonitor server.")
	serverRecords = flag.Int("serverRecords", 0, "Defines how many records should be sent to the server at once.")

	// MQTT
	mqttBroker       = flag.String("mqttBroker", "tcp://localhost:1883", "MQTT broker URL.")
	mqttUser         = flag.String("mqttUser", "", "MQTT user.")
	mqttPasswordFile = flag.String("mqttPasswordFile", "", "Path to the file containing the password for the MQTT user.")
	mqttTopicPrefix  = flag.String("mqttTopicPrefix", export.DefaultMQTTTopicPrefix, "Topic prefix records are published under.")
	mqttQoS          = flag.Int("mqttQoS", 1, "MQTT QoS level (0, 1 or 2).")

	// Redis
	redisAddr   = flag.String("redisAddr", "localhost:6379", "Redis server address.")
	redisDB     = flag.Int("redisDB", 0, "Redis DB number.")
	redisStream = flag.String("redisStream", export.DefaultRedisStream, "Redis stream records are appended to.")
	redisMaxLen = flag.Int64("redisMaxLen", 0, "Approximate maximum stream length, 0 keeps everything.")
)

func readSecret(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func parseFreqs(raw string) ([]int64, error) {
	var out []int64
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		freq, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid frequency %q: %w", f, err)
		}
		out = append(out, freq)
	}
	return out, nil
}

// loadConfig reads the YAML config if given and applies the flags on top.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return nil, err
		}
	}
	if *identifier != "" {
		cfg.Identifier = *identifier
	}
	if cfg.Identifier == "" {
		cfg.Identifier = uuid.NewString()
	}
	if *locator != "" {
		cfg.Location.Locator = *locator
	}
	fs, err := parseFreqs(*freqs)
	if err != nil {
		return nil, err
	}
	for _, f := range fs {
		cfg.Monitors = append(cfg.Monitors, config.MonitorConfig{
			Freq:      f,
			Threshold: *threshold,
			Recording: *recording,
		})
	}
	if len(cfg.Monitors) == 0 {
		return nil, errors.New("no monitors defined, use -config or -freqs")
	}
	return cfg, cfg.Validate()
}

// sweepSpan is the band covering all configured monitors, widened by the
// lowFreq and highFreq flags.
func sweepSpan(cfg *config.Config) *sdr.Options {
	var monitored []int64
	for _, m := range cfg.Monitors {
		monitored = append(monitored, m.Freq)
		monitored = append(monitored, m.Freqs...)
	}
	opts := sdr.SpanFor(monitored, *binSize, *integrationInterval)
	if *lowFreq > 0 && *lowFreq < opts.LowFreq {
		opts.LowFreq = *lowFreq
	}
	if *highFreq > opts.HighFreq {
		opts.HighFreq = *highFreq
	}
	return opts
}

func newExporter() (export.Exporter, error) {
	kind := strings.ToLower(*output)
	if kind == "sqlite" {
		kind = export.DialectSQLite
	}
	switch kind {
	case "csv":
		return &export.CSV{}, nil
	case export.DialectSQLite, export.DialectMySQL, export.DialectPostgres:
		db, err := export.OpenDB(&export.DBConfig{
			Dialect:           kind,
			SQLiteFile:        *sqliteFile,
			MySQLServer:       *mysqlServer,
			MySQLUser:         *mysqlUser,
			MySQLPasswordFile: *mysqlPasswordFile,
			MySQLDBName:       *mysqlDBName,
			PostgresDSN:       *postgresDSN,
		})
		if err != nil {
			return nil, err
		}
		return &export.SQL{DB: db, Dialect: kind}, nil
	case "server":
		return &export.Server{
			Server:            *server,
			SendRecordsAmount: *serverRecords,
		}, nil
	case "mqtt":
		pass, err := readSecret(*mqttPasswordFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read MQTT password file %q: %w", *mqttPasswordFile, err)
		}
		client, err := export.NewMQTTClient(*mqttBroker, *mqttUser, pass)
		if err != nil {
			return nil, err
		}
		return &export.MQTT{
			Client: client,
			Prefix: *mqttTopicPrefix,
			QoS:    byte(*mqttQoS),
		}, nil
	case "redis":
		return &export.Redis{
			Client: redis.NewClient(&redis.Options{
				Addr: *redisAddr,
				DB:   *redisDB,
			}),
			Stream: *redisStream,
			MaxLen: *redisMaxLen,
		}, nil
	}
	return nil, fmt.Errorf("%q is not a supported export method, pick one of: csv, sqlite, mysql, postgres, server, mqtt, redis", *output)
}

func serveAPI(st *station.Station, reg *prometheus.Registry) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	st.Routes(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:              *listen,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		glog.Infof("serving control API on %s\n", *listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Errorf("control API stopped: %s\n", err)
		}
	}()
	return srv
}

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		glog.Exitf("invalid configuration: %s", err)
	}
	loc, err := cfg.Locator()
	if err != nil {
		glog.Exitf("invalid station location: %s", err)
	}

	// SDR setup
	var radio sdr.SDR
	switch strings.ToLower(*sdrType) {
	case hackrf.SourceName:
		radio = &hackrf.SDR{
			Identifier: cfg.Identifier,
		}
	case rtlsdr.SourceName, "rtlsdr":
		radio = &rtlsdr.SDR{
			Identifier: cfg.Identifier,
		}
	default:
		glog.Exitf("%q is not a supported SDR type, pick one of: hackrf, rtlsdr", *sdrType)
	}

	// Station setup
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	defaults := monitor.DefaultOptions(0)
	defaults.LevelMin, defaults.LevelMax = cfg.Levels.Min, cfg.Levels.Max
	defaults.HistorySize = cfg.HistoryCapacity()
	opts := sweepSpan(cfg)
	st := station.New(&station.Options{
		Identifier: cfg.Identifier,
		Source:     radio.Name(),
		Location:   monitor.Location(loc),
		Defaults:   *defaults,
		Span:       opts,
		Registry:   reg,
	})
	for _, m := range cfg.Monitors {
		if err := st.Add(cfg.MonitorOptions(m), m.IsEnabled()); err != nil {
			glog.Exitf("unable to add monitor for %d Hz: %s", m.Freq, err)
		}
	}

	// Exporter setup
	exporter, err := newExporter()
	if err != nil {
		glog.Exitf("unable to set up exporter: %s", err)
	}

	if *listen != "" {
		srv := serveAPI(st, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	// Run
	samples := make(chan sdr.Sample)
	go func() {
		defer close(samples)
		if err := radio.Sweep(ctx, opts, samples); err != nil && !errors.Is(err, context.Canceled) {
			glog.Errorf("sweep failed: %s\n", err)
			stop()
		}
	}()

	filtered := make(chan sdr.Sample)
	go func() {
		defer close(filtered)
		filters := []filter.Filterer{
			&filter.FilterFreq{FreqLow: opts.LowFreq, FreqHigh: opts.HighFreq},
			st,
		}
		if err := filter.Filter(ctx, samples, filtered, filters); err != nil && !errors.Is(err, context.Canceled) {
			glog.Warningf("filter stopped: %s\n", err)
		}
	}()

	records := make(chan sdr.Record, 100)
	go func() {
		defer close(records)
		if err := st.Feed(ctx, filtered, records); err != nil && !errors.Is(err, context.Canceled) {
			glog.Warningf("station stopped: %s\n", err)
		}
	}()

	glog.Infof("station %q at %q monitoring %d frequencies between %d and %d Hz\n", cfg.Identifier, loc, len(cfg.Monitors), opts.LowFreq, opts.HighFreq)
	if err := exporter.Write(context.Background(), records); err != nil {
		glog.Errorf("export failed: %s\n", err)
	}
}
