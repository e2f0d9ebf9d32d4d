package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/hb9tf/rfmonitor/sdr"
)

const (
	mqttPublishTimeout     = 10 * time.Second
	mqttRecordCountInfo    = 100
	DefaultMQTTTopicPrefix = "rfmonitor/signals"
)

// Publisher is the part of mqtt.Client the exporter needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes every record as JSON on <Prefix>/<identifier>/<freq>.
type MQTT struct {
	Client Publisher
	Prefix string
	QoS    byte
	Retain bool
}

// NewMQTTClient connects to broker, retrying in the background after
// connection losses.
func NewMQTTClient(broker, username, password string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("rfmonitor_" + uuid.NewString()[:8])
	if username != "" {
		opts.SetUsername(username)
	}
	if password != "" {
		opts.SetPassword(password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		glog.Infoln("MQTT: connected to broker")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		glog.Warningf("MQTT: connection lost: %s\n", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(mqttPublishTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

func (m *MQTT) topic(r sdr.Record) string {
	prefix := m.Prefix
	if prefix == "" {
		prefix = DefaultMQTTTopicPrefix
	}
	return fmt.Sprintf("%s/%s/%d", prefix, r.Identifier, r.Freq)
}

func (m *MQTT) Write(ctx context.Context, records <-chan sdr.Record) error {
	counts := newCounts()
	for r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			counts.failed()
			glog.Warningf("error marshalling record: %s\n", err)
			continue
		}
		token := m.Client.Publish(m.topic(r), m.QoS, m.Retain, payload)
		if !token.WaitTimeout(mqttPublishTimeout) {
			counts.failed()
			glog.Warningf("timeout publishing record %s\n", r.ID)
			continue
		}
		if err := token.Error(); err != nil {
			counts.failed()
			glog.Warningf("error publishing record %s: %s\n", r.ID, err)
			continue
		}
		if counts.succeeded(mqttRecordCountInfo) {
			glog.Infof("Signal export counts: %+v\n", counts)
		}
	}
	return nil
}
