package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher emits order events. Publishing is best-effort: callers log
// failures and carry on.
type Publisher interface {
	PublishOrderSubmitted(ctx context.Context, event OrderSubmittedEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaProducer builds an async writer. Delivery failures are reported
// through the completion callback and logged.
func NewKafkaProducer(brokers, topic string, logger *zap.Logger) (*KafkaProducer, error) {
	if strings.TrimSpace(brokers) == "" {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	addrs := strings.Split(brokers, ",")

	writer := &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		WriteTimeout: 10 * time.Second,
		Completion: func(messages []kafka.Message, err error) {
			if err == nil {
				return
			}
			for _, m := range messages {
				logger.Error("Failed to deliver order event",
					zap.String("key", string(m.Key)),
					zap.Error(err))
			}
		},
	}

	return &KafkaProducer{writer: writer, logger: logger}, nil
}

func (p *KafkaProducer) PublishOrderSubmitted(ctx context.Context, event OrderSubmittedEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal order event", zap.Error(err))
		return err
	}

	msg := kafka.Message{
		Key:   []byte("ORDER#" + event.OrderID),
		Value: eventBytes,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish order event",
			zap.String("event_id", event.EventID),
			zap.Error(err))
		return err
	}

	p.logger.Debug("Order event queued",
		zap.String("event_id", event.EventID),
		zap.String("order_id", event.OrderID))
	return nil
}

func (p *KafkaProducer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderSubmitted(context.Context, OrderSubmittedEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
