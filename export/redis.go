package export

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/golang/glog"

	"github.com/hb9tf/rfmonitor/sdr"
)

const (
	DefaultRedisStream   = "rfmonitor:signals"
	redisRecordCountInfo = 100
)

// StreamAdder is the part of redis.Client the exporter needs.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Redis appends every record as JSON to a stream.
type Redis struct {
	Client StreamAdder
	Stream string
	// MaxLen approximately caps the stream length, 0 keeps everything.
	MaxLen int64
}

func (r *Redis) Write(ctx context.Context, records <-chan sdr.Record) error {
	stream := r.Stream
	if stream == "" {
		stream = DefaultRedisStream
	}

	counts := newCounts()
	for rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			counts.failed()
			glog.Warningf("error marshalling record: %s\n", err)
			continue
		}
		if err := r.Client.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			MaxLen: r.MaxLen,
			Approx: r.MaxLen > 0,
			Values: map[string]interface{}{
				"id":         rec.ID,
				"identifier": rec.Identifier,
				"freq":       rec.Freq,
				"data":       string(data),
			},
		}).Err(); err != nil {
			counts.failed()
			glog.Warningf("error adding record to stream %s: %s\n", stream, err)
			continue
		}
		if counts.succeeded(redisRecordCountInfo) {
			glog.Infof("Signal export counts: %+v\n", counts)
		}
	}
	return nil
}
