package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/rickgao/marketstream/internal/model"
)

// Kafka sink defaults.
const (
	DefaultKafkaTopic        = "marketdata.normalized"
	DefaultKafkaBatchTimeout = 100 * time.Millisecond
	DefaultKafkaWriteTimeout = 5 * time.Second
)

// KafkaConfig holds producer settings for a KafkaSink.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`       // bootstrap broker addresses
	Topic        string        `yaml:"topic"`         // destination topic
	BatchTimeout time.Duration `yaml:"batch_timeout"` // max wait before flushing a partial batch
	WriteTimeout time.Duration `yaml:"write_timeout"` // per-write deadline
	Async        bool          `yaml:"async"`         // fire-and-forget writes
}

// DefaultKafkaConfig returns a config for a local single-broker cluster.
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        DefaultKafkaTopic,
		BatchTimeout: DefaultKafkaBatchTimeout,
		WriteTimeout: DefaultKafkaWriteTimeout,
	}
}

// KafkaSink publishes normalized messages to one Kafka topic. Messages are
// keyed by stream id, so every message of a stream lands on the same
// partition and keeps its arrival order.
type KafkaSink struct {
	cfg    KafkaConfig
	logger *slog.Logger
	writer *kafkaGo.Writer

	ctx    context.Context
	cancel context.CancelFunc
}

// NewKafkaSink builds a producer for the configured brokers. The underlying
// writer dials lazily on the first Deliver.
func NewKafkaSink(cfg KafkaConfig, logger *slog.Logger) (*KafkaSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka sink: at least one broker required")
	}
	def := DefaultKafkaConfig()
	if cfg.Topic == "" {
		cfg.Topic = def.Topic
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = def.BatchTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	writer := &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkaGo.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafkaGo.RequireOne,
		Async:                  cfg.Async,
		AllowAutoTopicCreation: true,
		ErrorLogger: kafkaGo.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...))
		}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger.Info("kafka sink ready", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return &KafkaSink{cfg: cfg, logger: logger, writer: writer, ctx: ctx, cancel: cancel}, nil
}

// Deliver publishes msg keyed by its stream id.
func (s *KafkaSink) Deliver(msg *model.NormalizedMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	err = s.writer.WriteMessages(s.ctx, kafkaGo.Message{
		Key:   []byte(kafkaKey(msg)),
		Value: data,
	})
	if err != nil {
		if s.ctx.Err() != nil {
			return ErrSinkClosed
		}
		return fmt.Errorf("write to kafka: %w", err)
	}
	return nil
}

// Close aborts in-flight writes and releases the producer.
func (s *KafkaSink) Close() {
	s.cancel()
	if err := s.writer.Close(); err != nil {
		s.logger.Warn("kafka writer close failed", "error", err)
	}
}

// kafkaKey is the partitioning key for one message.
func kafkaKey(msg *model.NormalizedMessage) model.StreamID {
	return model.NewStreamID(msg.Exchange, msg.Symbol, msg.StreamType)
}
