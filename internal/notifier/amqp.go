package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const lowStockRoutingKey = "inventory.low_stock"

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes alerts to a topic exchange for downstream
// consumers (mailers, chat bots).
type AMQPNotifier struct {
	ch       amqpPublisher
	exchange string
	logger   *zap.Logger
}

// SetupAMQP dials the broker and declares the alert exchange.
func SetupAMQP(url, exchange string, logger *zap.Logger) (*amqp.Connection, *amqp.Channel, error) {
	var (
		conn *amqp.Connection
		err  error
	)

	// Simple retry for container startup
	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to RabbitMQ", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("could not declare exchange: %w", err)
	}

	return conn, ch, nil
}

func NewAMQPNotifier(ch amqpPublisher, exchange string, logger *zap.Logger) *AMQPNotifier {
	return &AMQPNotifier{ch: ch, exchange: exchange, logger: logger}
}

func (n *AMQPNotifier) SendLowStockAlert(ctx context.Context, itemName string) error {
	body, err := json.Marshal(NewAlert(itemName))
	if err != nil {
		return &domain.NotificationError{ItemName: itemName, Err: err}
	}

	err = n.ch.PublishWithContext(ctx,
		n.exchange,         // exchange
		lowStockRoutingKey, // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return &domain.NotificationError{ItemName: itemName, Err: err}
	}

	n.logger.Info("Low stock alert published",
		zap.String("item_name", itemName),
		zap.String("exchange", n.exchange))
	return nil
}
