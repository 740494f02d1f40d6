package announce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	logx "shipsbell/pkg/logx"
)

type MQTTConfig struct {
	Enabled  bool
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	Retained bool
}

const (
	DefaultMQTTTopic    = "shipsbell/watch"
	DefaultMQTTClientID = "shipsbell"

	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
)

// Payload is the JSON body published on each watch change.
type Payload struct {
	Watch     string `json:"watch"`
	Timestamp string `json:"timestamp"`
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Close() error
}

// MQTT publishes the watch name as JSON to a broker topic.
type MQTT struct {
	pub      publisher
	topic    string
	qos      byte
	retained bool
	now      func() time.Time
}

// NewMQTT connects to cfg.Broker and keeps reconnecting in the background.
func NewMQTT(cfg MQTTConfig, log logx.Logger) (*MQTT, error) {
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, errors.New("broker is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultMQTTClientID
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn("mqtt connection lost", logx.String("broker", cfg.Broker), logx.Err(err))
		}).
		SetOnConnectHandler(func(paho.Client) {
			log.Info("mqtt connected", logx.String("broker", cfg.Broker))
		})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return newMQTT(cfg, &pahoPublisher{client: client}), nil
}

func newMQTT(cfg MQTTConfig, pub publisher) *MQTT {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultMQTTTopic
	}
	return &MQTT{pub: pub, topic: topic, qos: cfg.QoS, retained: cfg.Retained, now: time.Now}
}

func (m *MQTT) Announce(ctx context.Context, watch string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(Payload{Watch: watch, Timestamp: m.now().UTC().Format(time.RFC3339)})
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return m.pub.Publish(m.topic, m.qos, m.retained, payload)
}

func (m *MQTT) Close() error { return m.pub.Close() }

type pahoPublisher struct {
	client paho.Client
}

func (p *pahoPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *pahoPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
