// Package mqtt bridges bedside monitors publishing vital readings over MQTT
// into the ingestion pipeline.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/neovance/neovance-go/internal/logger"
	"github.com/neovance/neovance-go/internal/vitals"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds
	subscribeQoS      = 1
)

// IngestFunc receives each decoded reading.
type IngestFunc func(reading *vitals.Reading)

// Config parameterizes the bridge.
type Config struct {
	Broker string
	// Topic is the subscription filter, e.g. "neovance/vitals/+". The last
	// topic segment is the subject id.
	Topic    string
	ClientID string
	Username string
	Password string
}

// Bridge subscribes to the vitals topic and feeds decoded readings into the
// pipeline. Malformed payloads are logged and dropped; the bridge never stops
// on bad input.
type Bridge struct {
	cfg    Config
	ingest IngestFunc
	log    logger.Logger
	client pahomqtt.Client
}

// payload is the wire format published by bedside monitors. The subject comes
// from the topic; a subject_id field, if present, must agree.
type payload struct {
	SubjectID string             `json:"subject_id,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// NewBridge creates a bridge. Call Start to connect and subscribe.
func NewBridge(cfg Config, ingest IngestFunc, log logger.Logger) *Bridge {
	return &Bridge{cfg: cfg, ingest: ingest, log: log}
}

// Start connects to the broker and subscribes to the vitals topic.
func (b *Bridge) Start() error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(b.cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(client pahomqtt.Client) {
			if token := client.Subscribe(b.cfg.Topic, subscribeQoS, b.handleMessage); token.Wait() && token.Error() != nil {
				b.log.Error("mqtt subscribe failed",
					logger.String("topic", b.cfg.Topic),
					logger.Error(token.Error()))
				return
			}
			b.log.Info("mqtt bridge subscribed", logger.String("topic", b.cfg.Topic))
		})
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}

	b.client = pahomqtt.NewClient(opts)
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", b.cfg.Broker, token.Error())
	}
	return nil
}

// Stop disconnects from the broker.
func (b *Bridge) Stop() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(disconnectQuiesce)
	}
}

func (b *Bridge) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	reading, err := decodeReading(msg.Topic(), msg.Payload())
	if err != nil {
		b.log.Warn("dropping malformed mqtt reading",
			logger.String("topic", msg.Topic()),
			logger.Error(err))
		return
	}
	b.ingest(reading)
}

// decodeReading parses one published message. The subject id is the last
// topic segment; the body carries the timestamp and vital values. A missing
// timestamp defaults to arrival time.
func decodeReading(topic string, body []byte) (*vitals.Reading, error) {
	segments := strings.Split(topic, "/")
	subjectID := segments[len(segments)-1]
	if subjectID == "" || subjectID == "+" || subjectID == "#" {
		return nil, fmt.Errorf("topic %q has no subject segment", topic)
	}

	var decoded payload
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	if decoded.SubjectID != "" && decoded.SubjectID != subjectID {
		return nil, fmt.Errorf("payload subject %q does not match topic subject %q",
			decoded.SubjectID, subjectID)
	}

	reading := &vitals.Reading{
		SubjectID: subjectID,
		Timestamp: decoded.Timestamp,
		Values:    decoded.Values,
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now().UTC()
	}
	if err := reading.Validate(); err != nil {
		return nil, err
	}
	return reading, nil
}
