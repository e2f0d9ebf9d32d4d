package station

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/hb9tf/rfmonitor/monitor"
	"github.com/hb9tf/rfmonitor/sdr"
)

func newTestRouter(t *testing.T) (*Station, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := newTestStation(t)
	r := gin.New()
	s.Routes(r)
	return s, r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestAPIAddAndList(t *testing.T) {
	_, r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/rfmonitor/v1/monitors", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, "[]", w.Body.String())

	w = do(t, r, http.MethodPost, "/rfmonitor/v1/monitors", `{"freq": 145500000, "threshold": -30, "recording": true}`)
	require.Equal(t, http.StatusCreated, w.Code)
	status := decode[Status](t, w)
	require.Equal(t, int64(145500000), status.Freq)
	require.Equal(t, -30.0, status.Threshold)
	require.True(t, status.Recording)
	require.True(t, status.Enabled)
	require.Equal(t, monitor.LevelMin, status.LevelMin)
	require.Equal(t, monitor.LevelMax, status.LevelMax)

	w = do(t, r, http.MethodPost, "/rfmonitor/v1/monitors", `{"freq": 145500000}`)
	require.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, "/rfmonitor/v1/monitors", `{"threshold": -30}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/rfmonitor/v1/monitors", "")
	require.Len(t, decode[[]Status](t, w), 1)
}

func TestAPIStatusErrors(t *testing.T) {
	_, r := newTestRouter(t)
	require.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/rfmonitor/v1/monitors/1", "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/rfmonitor/v1/monitors/abc", "").Code)
}

func TestAPIThreshold(t *testing.T) {
	s, r := newTestRouter(t)
	addMonitor(t, s, testFreq, -30, false)

	w := do(t, r, http.MethodPut, "/rfmonitor/v1/monitors/145500000/threshold", `{"value": -20}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, -20.0, decode[Status](t, w).Threshold)

	w = do(t, r, http.MethodPut, "/rfmonitor/v1/monitors/145500000/threshold", `{"value": 500}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	status, err := s.Status(testFreq)
	require.NoError(t, err)
	require.Equal(t, -20.0, status.Threshold)
}

func TestAPIRecordingAndEnabled(t *testing.T) {
	s, r := newTestRouter(t)
	addMonitor(t, s, testFreq, -30, false)

	w := do(t, r, http.MethodPut, "/rfmonitor/v1/monitors/145500000/recording", `{"enabled": true}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, decode[Status](t, w).Recording)

	w = do(t, r, http.MethodPut, "/rfmonitor/v1/monitors/145500000/enabled", `{"enabled": false}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, decode[Status](t, w).Enabled)
}

func TestAPISignals(t *testing.T) {
	s, r := newTestRouter(t)
	addMonitor(t, s, testFreq, -30, true)

	w := do(t, r, http.MethodGet, "/rfmonitor/v1/monitors/145500000/signals", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, "[]", w.Body.String())

	observeAll(s, sample(testFreq, -10, 0), sample(testFreq, -40, time.Second))
	w = do(t, r, http.MethodGet, "/rfmonitor/v1/monitors/145500000/signals", "")
	signals := decode[[]monitor.Signal](t, w)
	require.Len(t, signals, 1)
	require.Equal(t, monitor.Location("JN47"), signals[0].Location)
	require.Equal(t, -10.0, signals[0].Peak)

	// Recording or holding signals locks the frequency.
	w = do(t, r, http.MethodPut, "/rfmonitor/v1/monitors/145500000/frequency", `{"value": 145600000}`)
	require.Equal(t, http.StatusConflict, w.Code)

	restore, err := json.Marshal(append(signals, signals[0]))
	require.NoError(t, err)
	w = do(t, r, http.MethodPut, "/rfmonitor/v1/monitors/145500000/signals", string(restore))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2, decode[Status](t, w).SignalCount)

	require.Equal(t, http.StatusConflict, do(t, r, http.MethodDelete, "/rfmonitor/v1/monitors/145500000", "").Code)

	w = do(t, r, http.MethodDelete, "/rfmonitor/v1/monitors/145500000/signals", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Zero(t, decode[Status](t, w).SignalCount)

	require.Equal(t, http.StatusNoContent, do(t, r, http.MethodDelete, "/rfmonitor/v1/monitors/145500000", "").Code)
}

func TestAPIFrequency(t *testing.T) {
	s, r := newTestRouter(t)
	addMonitor(t, s, testFreq, -30, true)

	w := do(t, r, http.MethodPut, "/rfmonitor/v1/monitors/145500000/frequency", `{"value": 145600000, "force": true}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, int64(145600000), decode[Status](t, w).Freq)
	require.Equal(t, []int64{145600000}, s.Freqs())
}

func TestAPILevels(t *testing.T) {
	s, r := newTestRouter(t)
	addMonitor(t, s, testFreq, -30, false)
	observeAll(s, sample(testFreq, -50, 0), sample(testFreq, -20, time.Second))

	w := do(t, r, http.MethodGet, "/rfmonitor/v1/monitors/145500000/levels", "")
	require.Equal(t, http.StatusOK, w.Code)
	levels := decode[[]monitor.Sample](t, w)
	require.Len(t, levels, 2)
	require.Equal(t, -20.0, levels[1].Level)

	w = do(t, r, http.MethodGet, "/rfmonitor/v1/monitors/145500000/levels.png?width=200&height=100&grid=false", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 200, img.Bounds().Dx())
	require.Equal(t, 100, img.Bounds().Dy())

	w = do(t, r, http.MethodGet, "/rfmonitor/v1/monitors/145500000/levels.png?width=0", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPILive(t *testing.T) {
	s, r := newTestRouter(t)
	addMonitor(t, s, testFreq, -30, false)
	observeAll(s, sample(testFreq, -42, 0))

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rfmonitor/v1/monitors/145500000/live?interval=100ms"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var snap Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	require.Equal(t, int64(testFreq), snap.Status.Freq)
	require.NotNil(t, snap.Latest)
	require.Equal(t, -42.0, snap.Latest.Level)

	// Removing the monitor ends the stream.
	require.NoError(t, s.Remove(testFreq, true))
	for {
		if err := conn.ReadJSON(&snap); err != nil {
			break
		}
	}

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIRejectsUncoveredFrequencies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(&Options{
		Identifier: "station",
		Defaults:   *monitor.DefaultOptions(0),
		Span:       &sdr.Options{LowFreq: 144000000, HighFreq: 146000000},
		Registry:   prometheus.NewRegistry(),
	})
	r := gin.New()
	s.Routes(r)

	w := do(t, r, http.MethodPost, "/rfmonitor/v1/monitors", `{"freq": 433920000}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "outside of the swept band")

	w = do(t, r, http.MethodPost, "/rfmonitor/v1/monitors", `{"freq": 145500000}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodPut, "/rfmonitor/v1/monitors/145500000/frequency", `{"value": 433920000}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, []int64{145500000}, s.Freqs())
}

func TestAPILocation(t *testing.T) {
	s, r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/rfmonitor/v1/location", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"locator": "JN47"}`, w.Body.String())

	w = do(t, r, http.MethodPut, "/rfmonitor/v1/location", `{"locator": "ZZ99"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, monitor.Location("JN47"), s.Location())

	w = do(t, r, http.MethodPut, "/rfmonitor/v1/location", `{"locator": "JN36bw"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, monitor.Location("JN36bw"), s.Location())

	// Signals recorded after the move carry the new locator.
	addMonitor(t, s, testFreq, -30, true)
	records := observeAll(s, sample(testFreq, -10, 0), sample(testFreq, -40, time.Second))
	require.Len(t, records, 1)
	require.Equal(t, "JN36bw", records[0].Location)
}
