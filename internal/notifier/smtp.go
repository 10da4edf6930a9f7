package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/cloud-wave-best-zizon/inventory-service/pkg/config"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type sendFunc func(ctx context.Context, msg *mail.Msg) error

// SMTPNotifier mails alerts through an authenticated submission relay
// using STARTTLS.
type SMTPNotifier struct {
	from      string
	recipient string
	send      sendFunc
	logger    *zap.Logger
}

func NewSMTPNotifier(cfg config.SMTPConfig, timeout time.Duration, logger *zap.Logger) (*SMTPNotifier, error) {
	if cfg.Recipient == "" {
		return nil, errors.New("smtp recipient is required")
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(timeout),
	)
	if err != nil {
		return nil, err
	}

	return &SMTPNotifier{
		from:      from,
		recipient: cfg.Recipient,
		send: func(ctx context.Context, msg *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
		logger: logger,
	}, nil
}

func (n *SMTPNotifier) SendLowStockAlert(ctx context.Context, itemName string) error {
	msg, err := n.compose(NewAlert(itemName))
	if err != nil {
		return &domain.NotificationError{ItemName: itemName, Err: err}
	}

	if err := n.send(ctx, msg); err != nil {
		return &domain.NotificationError{ItemName: itemName, Err: err}
	}

	n.logger.Info("Low stock alert mailed",
		zap.String("item_name", itemName),
		zap.String("recipient", n.recipient))
	return nil
}

func (n *SMTPNotifier) compose(alert Alert) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, err
	}
	if err := msg.To(n.recipient); err != nil {
		return nil, err
	}
	msg.Subject(alert.Subject)
	msg.SetBodyString(mail.TypeTextPlain, alert.Body)
	return msg, nil
}
