package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"math"
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hb9tf/rfmonitor/export"
	"github.com/hb9tf/rfmonitor/extraction"
	"github.com/hb9tf/rfmonitor/sdr"
)

var (
	listen   = flag.String("listen", ":8443", "")
	certFile = flag.String("certFile", "", "Path of the file containing the certificate (including the chained intermediates and root) for the TLS connection.")
	keyFile  = flag.String("keyFile", "", "Path of the file containing the key for the TLS connection.")
	output   = flag.String("output", "", "Export mechanism to use (one of: csv, sqlite, mysql, postgres, mqtt, redis)")

	// SQL
	sqliteFile        = flag.String("sqliteFile", "/tmp/rfmonitor", "File path of the sqlite DB file to use.")
	mysqlServer       = flag.String("mysqlServer", "127.0.0.1:3306", "MySQL TCP server endpoint to connect to (IP/DNS and port).")
	mysqlUser         = flag.String("mysqlUser", "", "MySQL DB user.")
	mysqlPasswordFile = flag.String("mysqlPasswordFile", "", "Path to the file containing the password for the MySQL user.")
	mysqlDBName       = flag.String("mysqlDBName", "rfmonitor", "Name of the DB to use.")
	postgresDSN       = flag.String("postgresDSN", "postgres://localhost:5432/rfmonitor?sslmode=disable", "Postgres connection URL or DSN.")

	// MQTT
	mqttBroker       = flag.String("mqttBroker", "tcp://localhost:1883", "MQTT broker URL.")
	mqttUser         = flag.String("mqttUser", "", "MQTT user.")
	mqttPasswordFile = flag.String("mqttPasswordFile", "", "Path to the file containing the password for the MQTT user.")
	mqttTopicPrefix  = flag.String("mqttTopicPrefix", export.DefaultMQTTTopicPrefix, "Topic prefix records are published under.")

	// Redis
	redisAddr   = flag.String("redisAddr", "localhost:6379", "Redis server address.")
	redisStream = flag.String("redisStream", export.DefaultRedisStream, "Redis stream records are appended to.")
)

const (
	apiPrefix = "/rfmonitor/v1"
	timeFmt   = "2006-01-02T15:04:05"
)

type RFMonitorServer struct {
	records chan<- sdr.Record

	// db and dialect are only set when records are stored in SQL, they
	// back the query endpoints.
	db      *sql.DB
	dialect string

	collected *prometheus.CounterVec
}

func newServer(records chan<- sdr.Record, db *sql.DB, dialect string, reg prometheus.Registerer) *RFMonitorServer {
	return &RFMonitorServer{
		records: records,
		db:      db,
		dialect: dialect,
		collected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rfmonitor_server_collected_records_total",
				Help: "Records received from collectors",
			},
			[]string{"identifier"},
		),
	}
}

func (s *RFMonitorServer) routes(r gin.IRouter) {
	g := r.Group(apiPrefix)
	g.POST("/collect", s.collectHandler)
	g.GET("/signals", s.signalsHandler)
	g.GET("/timeline.png", s.timelineHandler)
}

func (s *RFMonitorServer) collectHandler(c *gin.Context) {
	records := []sdr.Record{}
	if err := c.ShouldBindJSON(&records); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, r := range records {
		select {
		case s.records <- r:
			s.collected.WithLabelValues(r.Identifier).Inc()
		case <-c.Request.Context().Done():
			return
		}
	}
	c.JSON(http.StatusOK, export.CollectResponse{
		Status:      "ok",
		RecordCount: len(records),
	})
}

func parseTime(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(timeFmt, raw)
}

func parseFreq(raw string, fallback int64) (int64, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// filterOptions builds the signal selection from the query parameters.
func filterOptions(c *gin.Context) (*extraction.FilterOptions, error) {
	f := &extraction.FilterOptions{Identifier: c.DefaultQuery("identifier", "%")}
	var err error
	if f.StartFreq, err = parseFreq(c.Query("startFreq"), 0); err != nil {
		return nil, fmt.Errorf("invalid startFreq: %w", err)
	}
	if f.EndFreq, err = parseFreq(c.Query("endFreq"), math.MaxInt64); err != nil {
		return nil, fmt.Errorf("invalid endFreq: %w", err)
	}
	if f.StartTime, err = parseTime(c.Query("startTime"), time.Unix(0, 0)); err != nil {
		return nil, fmt.Errorf("invalid startTime: %w", err)
	}
	if f.EndTime, err = parseTime(c.Query("endTime"), time.Now()); err != nil {
		return nil, fmt.Errorf("invalid endTime: %w", err)
	}
	return f, nil
}

func (s *RFMonitorServer) signalsHandler(c *gin.Context) {
	if s.db == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "records are not stored in a DB"})
		return
	}
	f, err := filterOptions(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	records, err := extraction.QuerySignals(s.db, s.dialect, f)
	if err != nil {
		glog.Warningf("unable to query signals: %s\n", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []sdr.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (s *RFMonitorServer) timelineHandler(c *gin.Context) {
	if s.db == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "records are not stored in a DB"})
		return
	}
	f, err := filterOptions(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	width, _ := strconv.Atoi(c.DefaultQuery("width", "1024"))
	height, _ := strconv.Atoi(c.DefaultQuery("height", "480"))
	res, err := extraction.Render(s.db, s.dialect, &extraction.RenderRequest{
		Filter: f,
		Image: &extraction.ImageOptions{
			Width:   width,
			Height:  height,
			AddGrid: c.Query("grid") != "false",
		},
	})
	switch {
	case errors.Is(err, extraction.ErrNoSignals):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, res.Image); err != nil {
		glog.Warningf("unable to encode timeline: %s\n", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

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

// newExporter returns the exporter selected via flags and, for SQL stores,
// the DB it writes to.
func newExporter() (export.Exporter, *sql.DB, string, error) {
	kind := strings.ToLower(*output)
	if kind == "sqlite" {
		kind = export.DialectSQLite
	}
	switch kind {
	case "csv":
		return &export.CSV{}, nil, "", nil
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
			return nil, nil, "", err
		}
		return &export.SQL{DB: db, Dialect: kind}, db, kind, nil
	case "mqtt":
		pass, err := readSecret(*mqttPasswordFile)
		if err != nil {
			return nil, nil, "", fmt.Errorf("unable to read MQTT password file %q: %w", *mqttPasswordFile, err)
		}
		client, err := export.NewMQTTClient(*mqttBroker, *mqttUser, pass)
		if err != nil {
			return nil, nil, "", err
		}
		return &export.MQTT{Client: client, Prefix: *mqttTopicPrefix, QoS: 1}, nil, "", nil
	case "redis":
		return &export.Redis{
			Client: redis.NewClient(&redis.Options{Addr: *redisAddr}),
			Stream: *redisStream,
		}, nil, "", nil
	}
	return nil, nil, "", fmt.Errorf("%q is not a supported export method, pick one of: csv, sqlite, mysql, postgres, mqtt, redis", *output)
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

	// Exporter setup
	exporter, db, dialect, err := newExporter()
	if err != nil {
		glog.Exitf("unable to set up exporter: %s", err)
	}
	if sqlExporter, ok := exporter.(*export.SQL); ok {
		if err := sqlExporter.CreateTable(ctx); err != nil {
			glog.Exitf("unable to prepare DB: %s", err)
		}
	}

	// Export records.
	records := make(chan sdr.Record, 1000)
	exported := make(chan struct{})
	go func() {
		defer close(exported)
		if err := exporter.Write(context.Background(), records); err != nil {
			glog.Errorf("export failed: %s\n", err)
		}
	}()

	// Configure and run webserver.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s := newServer(records, db, dialect, reg)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	s.routes(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:              *listen,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		var err error
		if *certFile != "" || *keyFile != "" {
			err = srv.ListenAndServeTLS(*certFile, *keyFile)
		} else {
			glog.Infoln("Resorting to serving HTTP because there was no certificate and key defined.")
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Errorf("server stopped: %s\n", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		glog.Warningf("unclean shutdown: %s\n", err)
	}
	close(records)
	<-exported
}
