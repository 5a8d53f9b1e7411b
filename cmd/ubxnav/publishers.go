package main

import (
	"fmt"

	"go.uber.org/zap"

	"ubxnav/internal/config"
	"ubxnav/internal/publish"
)

var (
	newUDP  = publish.NewUDP
	newMQTT = publish.NewMQTT
)

// buildPublisher returns a fan-out over every enabled sink. An empty Multi
// publishes nothing.
func buildPublisher(cfg config.Config, logger *zap.Logger) (publish.Multi, error) {
	var out publish.Multi
	fail := func(err error) (publish.Multi, error) {
		out.Close()
		return nil, err
	}

	if cfg.UDP.Enable {
		u, err := newUDP(cfg.UDP.Dest)
		if err != nil {
			return fail(fmt.Errorf("udp publisher init failed: %w", err))
		}
		out = append(out, u)
		logger.Info("publishing fixes over udp", zap.String("dest", cfg.UDP.Dest))
	}
	if cfg.MQTT.Enable {
		m, err := newMQTT(publish.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      byte(cfg.MQTT.QoS),
			Retained: cfg.MQTT.Retained,
		}, logger)
		if err != nil {
			return fail(fmt.Errorf("mqtt publisher init failed: %w", err))
		}
		out = append(out, m)
		logger.Info("publishing fixes over mqtt", zap.String("broker", cfg.MQTT.Broker), zap.String("topic", cfg.MQTT.Topic))
	}
	if cfg.Kafka.Enable {
		out = append(out, publish.NewKafka(publish.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			Key:     cfg.Kafka.Key,
		}, logger))
		logger.Info("publishing fixes to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	if cfg.AMQP.Enable {
		out = append(out, publish.NewAMQP(publish.AMQPConfig{
			URL:        cfg.AMQP.URL,
			Exchange:   cfg.AMQP.Exchange,
			RoutingKey: cfg.AMQP.RoutingKey,
		}, logger))
		logger.Info("publishing fixes to amqp", zap.String("exchange", cfg.AMQP.Exchange), zap.String("routing_key", cfg.AMQP.RoutingKey))
	}
	return out, nil
}
