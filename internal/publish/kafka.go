package publish

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"ubxnav/internal/logging"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Key     string
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes each fix as one JSON record keyed by the receiver name.
type Kafka struct {
	writer kafkaWriter
	cfg    KafkaConfig
	logger *zap.Logger
}

func NewKafka(cfg KafkaConfig, logger *zap.Logger) *Kafka {
	logger = logging.OrNop(logger)
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
	}
	logger.Info("Initialized Kafka producer", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return &Kafka{writer: w, cfg: cfg, logger: logger}
}

func (k *Kafka) Publish(ctx context.Context, fix any) error {
	body, err := encode(fix)
	if err != nil {
		return err
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(k.cfg.Key), Value: body})
	if err != nil {
		k.logger.Error("Failed to produce fix to Kafka", zap.Error(err), zap.String("topic", k.cfg.Topic))
		return err
	}
	return nil
}

func (k *Kafka) Close() {
	if err := k.writer.Close(); err != nil {
		k.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}
