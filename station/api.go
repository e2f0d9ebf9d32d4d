package station

import (
	"bytes"
	"errors"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"github.com/hb9tf/rfmonitor/extraction"
	"github.com/hb9tf/rfmonitor/monitor"
	"github.com/hb9tf/rfmonitor/sdr"
)

const APIPrefix = "/rfmonitor/v1"

type addRequest struct {
	Freq      int64    `json:"freq" binding:"required"`
	Freqs     []int64  `json:"freqs"`
	Threshold *float64 `json:"threshold"`
	Recording bool     `json:"recording"`
	Enabled   *bool    `json:"enabled"`
}

type valueRequest struct {
	Value float64 `json:"value"`
}

type frequencyRequest struct {
	Value int64 `json:"value" binding:"required"`
	Force bool  `json:"force"`
}

type locationRequest struct {
	Locator string `json:"locator" binding:"required"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

// Routes registers the control API on r.
func (s *Station) Routes(r gin.IRouter) {
	r.GET(APIPrefix+"/location", s.locationHandler)
	r.PUT(APIPrefix+"/location", s.setLocationHandler)

	g := r.Group(APIPrefix + "/monitors")
	g.GET("", s.listHandler)
	g.POST("", s.addHandler)
	g.GET("/:freq", s.statusHandler)
	g.DELETE("/:freq", s.removeHandler)
	g.PUT("/:freq/threshold", s.thresholdHandler)
	g.PUT("/:freq/recording", s.recordingHandler)
	g.PUT("/:freq/enabled", s.enabledHandler)
	g.PUT("/:freq/frequency", s.frequencyHandler)
	g.GET("/:freq/signals", s.signalsHandler)
	g.PUT("/:freq/signals", s.setSignalsHandler)
	g.DELETE("/:freq/signals", s.clearSignalsHandler)
	g.GET("/:freq/levels", s.levelsHandler)
	g.GET("/:freq/levels.png", s.levelsImageHandler)
	g.GET("/:freq/live", s.liveHandler)
}

// abort translates err into a status code.
func abort(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrExists), errors.Is(err, ErrLocked), errors.Is(err, ErrHasSignals):
		code = http.StatusConflict
	case errors.Is(err, monitor.ErrThresholdRange), errors.Is(err, monitor.ErrUnknownFrequency), errors.Is(err, monitor.ErrNoFrequencies), errors.Is(err, ErrNotCovered):
		code = http.StatusBadRequest
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func freqParam(c *gin.Context) (int64, bool) {
	freq, err := strconv.ParseInt(c.Param("freq"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid frequency: " + err.Error()})
		return 0, false
	}
	return freq, true
}

func (s *Station) respondStatus(c *gin.Context, freq int64) {
	status, err := s.Status(freq)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Station) locationHandler(c *gin.Context) {
	c.JSON(http.StatusOK, locationRequest{Locator: string(s.Location())})
}

// setLocationHandler moves a portable station. Signals recorded from then on
// carry the new locator.
func (s *Station) setLocationHandler(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, _, err := sdr.LatLon(req.Locator); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.SetLocation(monitor.Location(req.Locator))
	glog.Infof("station moved to %s", req.Locator)
	c.JSON(http.StatusOK, req)
}

func (s *Station) listHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.List())
}

func (s *Station) addHandler(c *gin.Context) {
	var req addRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opts := s.Defaults()
	opts.Frequency = req.Freq
	opts.Frequencies = req.Freqs
	opts.Recording = req.Recording
	opts.Threshold = opts.LevelMin
	if req.Threshold != nil {
		opts.Threshold = *req.Threshold
	}
	enabled := req.Enabled == nil || *req.Enabled
	if err := s.Add(&opts, enabled); err != nil {
		abort(c, err)
		return
	}
	status, err := s.Status(req.Freq)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, status)
}

func (s *Station) statusHandler(c *gin.Context) {
	freq, ok := freqParam(c)
	if !ok {
		return
	}
	s.respondStatus(c, freq)
}

func (s *Station) removeHandler(c *gin.Context) {
	freq, ok := freqParam(c)
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(c.Query("force"))
	if err := s.Remove(freq, force); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Station) thresholdHandler(c *gin.Context) {
	freq, ok := freqParam(c)
	if !ok {
		return
	}
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Do(freq, func(m *monitor.Monitor) error {
		return m.SetThreshold(req.Value)
	}); err != nil {
		abort(c, err)
		return
	}
	s.respondStatus(c, freq)
}

func (s *Station) recordingHandler(c *gin.Context) {
	freq, ok := freqParam(c)
	if !ok {
		return
	}
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Do(freq, func(m *monitor.Monitor) error {
		m.SetRecording(req.Enabled)
		return nil
	}); err != nil {
		abort(c, err)
		return
	}
	s.respondStatus(c, freq)
}

func (s *Station) enabledHandler(c *gin.Context) {
	freq, ok := freqParam(c)
	if !ok {
		return
	}
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.SetEnabled(freq, req.Enabled); err != nil {
		abort(c, err)
		return
	}
	s.respondStatus(c, freq)
}

func (s *Station) frequencyHandler(c *gin.Context) {
	freq, ok := freqParam(c)
	if !ok {
		return
	}
	var req frequencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.ChangeFrequency(freq, req.Value, req.Force); err != nil {
		abort(c, err)
		return
	}
	s.respondStatus(c, req.Value)
}

func (s *Station) signalsHandler(c *gin.Context) {
	freq, ok := freqParam(c)
	if !ok {
		return
	}
	var signals []monitor.Signal
	if err := s.Do(freq, func(m *monitor.Monitor) error {
		signals = m.Signals()
		return nil
	}); err != nil {
		abort(c, err)
		return
	}
	if signals == nil {
		signals = []monitor.Signal{}
	}
	c.JSON(http.StatusOK, signals)
}

func (s *Station) setSignalsHandler(c *gin.Context) {
	freq, ok := freqParam(c)
	if !ok {
		return
	}
	var signals []monitor.Signal
	if err := c.ShouldBindJSON(&signals); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Do(freq, func(m *monitor.Monitor) error {
		m.SetSignals(signals)
		return nil
	}); err != nil {
		abort(c, err)
		return
	}
	s.respondStatus(c, freq)
}

func (s *Station) clearSignalsHandler(c *gin.Context) {
	freq, ok := freqParam(c)
	if !ok {
		return
	}
	if err := s.Do(freq, func(m *monitor.Monitor) error {
		m.ClearSignals()
		return nil
	}); err != nil {
		abort(c, err)
		return
	}
	s.respondStatus(c, freq)
}

func (s *Station) levels(freq int64) ([]monitor.Sample, float64, error) {
	var levels []monitor.Sample
	var threshold float64
	err := s.Do(freq, func(m *monitor.Monitor) error {
		levels = m.Levels()
		threshold = m.Threshold()
		return nil
	})
	return levels, threshold, err
}

func (s *Station) levelsHandler(c *gin.Context) {
	freq, ok := freqParam(c)
	if !ok {
		return
	}
	levels, _, err := s.levels(freq)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, levels)
}

func (s *Station) levelsImageHandler(c *gin.Context) {
	freq, ok := freqParam(c)
	if !ok {
		return
	}
	levels, threshold, err := s.levels(freq)
	if err != nil {
		abort(c, err)
		return
	}
	width, _ := strconv.Atoi(c.DefaultQuery("width", "640"))
	height, _ := strconv.Atoi(c.DefaultQuery("height", "240"))
	img, err := extraction.RenderLevels(levels, threshold, &extraction.ImageOptions{
		Width:   width,
		Height:  height,
		AddGrid: c.Query("grid") != "false",
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		glog.Warningf("unable to encode levels of %d Hz: %s\n", freq, err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Station) liveHandler(c *gin.Context) {
	freq, ok := freqParam(c)
	if !ok {
		return
	}
	if _, err := s.Status(freq); err != nil {
		abort(c, err)
		return
	}
	interval := time.Second
	if d, err := time.ParseDuration(c.Query("interval")); err == nil && d >= 100*time.Millisecond {
		interval = d
	}
	s.streamLive(c.Writer, c.Request, freq, interval)
}
