package notifier

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Notifier dispatches a low-stock alert for one item. Implementations wrap
// every failure in *domain.NotificationError.
type Notifier interface {
	SendLowStockAlert(ctx context.Context, itemName string) error
}

// Alert is the message sent to the operator.
type Alert struct {
	ItemName  string    `json:"item_name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func NewAlert(itemName string) Alert {
	return Alert{
		ItemName:  itemName,
		Subject:   fmt.Sprintf("Low Stock Alert: %s", itemName),
		Body:      fmt.Sprintf("%s is low in stock. Please replenish the stock.", itemName),
		CreatedAt: time.Now().UTC(),
	}
}

// LogNotifier writes alerts to the log. It is used when no relay is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendLowStockAlert(ctx context.Context, itemName string) error {
	alert := NewAlert(itemName)
	n.logger.Warn(alert.Subject,
		zap.String("item_name", itemName),
		zap.String("body", alert.Body))
	return nil
}
