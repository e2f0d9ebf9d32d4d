package export

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hb9tf/rfmonitor/sdr"
)

func TestServerWriteBatches(t *testing.T) {
	var mu sync.Mutex
	var batches [][]sdr.Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/"+CollectEndpoint, r.URL.Path)
		var batch []sdr.Record
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		mu.Lock()
		batches = append(batches, batch)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(CollectResponse{Status: "ok", RecordCount: len(batch)})
	}))
	defer srv.Close()

	s := &Server{Server: srv.URL + "/", SendRecordsAmount: 2}
	records := testRecords(5)
	require.NoError(t, s.Write(context.Background(), feed(records)))

	require.Len(t, batches, 3)
	require.Len(t, batches[0], 2)
	require.Len(t, batches[2], 1)
	require.Equal(t, records[4].ID, batches[2][0].ID)
	require.True(t, records[4].Start.Equal(batches[2][0].Start))
}

func TestServerWriteReportsUnsentTail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := &Server{Server: srv.URL, SendRecordsAmount: 10}
	require.Error(t, s.Write(context.Background(), feed(testRecords(3))))
}
