package publish

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"ubxnav/internal/logging"
)

type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Retained bool
}

// mqttClient is the subset of mqtt.Client used here.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes fixes as retained JSON messages on one topic.
type MQTT struct {
	client mqttClient
	cfg    MQTTConfig
	logger *zap.Logger
}

const mqttPublishTimeout = 5 * time.Second

func NewMQTT(cfg MQTTConfig, logger *zap.Logger) (*MQTT, error) {
	logger = logging.OrNop(logger)
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(mqttPublishTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	logger.Info("Connected to MQTT broker", zap.String("broker", cfg.Broker), zap.String("topic", cfg.Topic))
	return &MQTT{client: client, cfg: cfg, logger: logger}, nil
}

func (m *MQTT) Publish(ctx context.Context, fix any) error {
	body, err := encode(fix)
	if err != nil {
		return err
	}
	token := m.client.Publish(m.cfg.Topic, m.cfg.QoS, m.cfg.Retained, body)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		m.logger.Error("Failed to publish fix to MQTT", zap.Error(err), zap.String("topic", m.cfg.Topic))
		return err
	}
	return nil
}

func (m *MQTT) Close() {
	m.client.Disconnect(250)
}
