package export

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/hb9tf/rfmonitor/sdr"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.msgs = append(p.msgs, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return &fakeToken{err: p.err}
}

func TestMQTTWrite(t *testing.T) {
	pub := &fakePublisher{}
	m := &MQTT{Client: pub, QoS: 1}
	records := testRecords(2)
	require.NoError(t, m.Write(context.Background(), feed(records)))

	require.Len(t, pub.msgs, 2)
	require.Equal(t, "rfmonitor/signals/station/433920000", pub.msgs[0].topic)
	require.Equal(t, byte(1), pub.msgs[0].qos)

	var got sdr.Record
	require.NoError(t, json.Unmarshal(pub.msgs[1].payload, &got))
	require.Equal(t, records[1].ID, got.ID)
	require.Equal(t, records[1].Peak, got.Peak)
}

func TestMQTTWriteKeepsGoingOnError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	m := &MQTT{Client: pub, Prefix: "lab"}
	require.NoError(t, m.Write(context.Background(), feed(testRecords(3))))
	require.Len(t, pub.msgs, 3)
	require.Equal(t, "lab/station/433920000", pub.msgs[2].topic)
}
