package publish

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"ubxnav/internal/logging"
)

type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type amqpConn interface {
	Close() error
}

// dialAMQP opens a connection and a channel and declares the topic exchange.
var dialAMQP = func(cfg AMQPConfig) (amqpConn, amqpChannel, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return conn, ch, nil
}

// AMQP publishes fixes to a topic exchange. The connection is opened lazily
// and dropped on the first failed publish so the next fix redials.
type AMQP struct {
	cfg    AMQPConfig
	logger *zap.Logger

	mu   sync.Mutex
	conn amqpConn
	ch   amqpChannel
}

func NewAMQP(cfg AMQPConfig, logger *zap.Logger) *AMQP {
	return &AMQP{cfg: cfg, logger: logging.OrNop(logger)}
}

func (a *AMQP) Publish(ctx context.Context, fix any) error {
	body, err := encode(fix)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ch == nil {
		conn, ch, err := dialAMQP(a.cfg)
		if err != nil {
			a.logger.Warn("RabbitMQ connection failed", zap.Error(err))
			return err
		}
		a.conn, a.ch = conn, ch
		a.logger.Info("Connected to RabbitMQ", zap.String("exchange", a.cfg.Exchange))
	}

	err = a.ch.PublishWithContext(ctx, a.cfg.Exchange, a.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		a.logger.Error("Failed to publish fix to RabbitMQ", zap.Error(err))
		a.closeLocked()
		return err
	}
	return nil
}

func (a *AMQP) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeLocked()
}

func (a *AMQP) closeLocked() {
	if a.ch != nil {
		_ = a.ch.Close()
		a.ch = nil
	}
	if a.conn != nil {
		_ = a.conn.Close()
		a.conn = nil
	}
}
