package station

import (
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/hb9tf/rfmonitor/monitor"
)

const liveWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Snapshot is what live clients receive on every tick.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Status    Status          `json:"status"`
	Latest    *monitor.Sample `json:"latest,omitempty"`
}

func (s *Station) snapshot(freq int64) (Snapshot, error) {
	snap := Snapshot{Timestamp: time.Now()}
	e, err := s.lock(freq)
	if err != nil {
		return snap, err
	}
	defer e.mu.Unlock()
	snap.Status = statusOf(e)
	if levels := e.m.Levels(); len(levels) > 0 {
		latest := levels[len(levels)-1]
		snap.Latest = &latest
	}
	return snap, nil
}

// streamLive pushes snapshots of freq until the client goes away or the
// monitor is removed.
func (s *Station) streamLive(w http.ResponseWriter, r *http.Request, freq int64, interval time.Duration) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("live: websocket upgrade failed: %s\n", err)
		return
	}
	defer conn.Close()

	// Reads only serve to notice the client closing the connection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		snap, err := s.snapshot(freq)
		if err != nil {
			conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()), time.Now().Add(liveWriteTimeout))
			return
		}
		conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
		if err := conn.WriteJSON(snap); err != nil {
			glog.V(1).Infof("live: client for %d Hz went away: %s", freq, err)
			return
		}

		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
