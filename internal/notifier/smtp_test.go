package notifier

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/cloud-wave-best-zizon/inventory-service/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

func newTestSMTPNotifier(send sendFunc) *SMTPNotifier {
	return &SMTPNotifier{
		from:      "ops@example.com",
		recipient: "admin@example.com",
		send:      send,
		logger:    zap.NewNop(),
	}
}

func TestSMTPNotifier_ComposesPlainTextAlert(t *testing.T) {
	var sent *mail.Msg
	n := newTestSMTPNotifier(func(ctx context.Context, msg *mail.Msg) error {
		sent = msg
		return nil
	})

	require.NoError(t, n.SendLowStockAlert(context.Background(), "Widget"))
	require.NotNil(t, sent)

	assert.Equal(t, []string{"Low Stock Alert: Widget"}, sent.GetGenHeader(mail.HeaderSubject))

	var buf bytes.Buffer
	_, err := sent.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Widget is low in stock. Please replenish the stock.")
	assert.Contains(t, buf.String(), "admin@example.com")
}

func TestSMTPNotifier_RelayFailureIsNotificationError(t *testing.T) {
	n := newTestSMTPNotifier(func(ctx context.Context, msg *mail.Msg) error {
		return errors.New("535 5.7.8 authentication failed")
	})

	err := n.SendLowStockAlert(context.Background(), "Widget")

	assert.ErrorIs(t, err, domain.ErrNotification)
	var nerr *domain.NotificationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "Widget", nerr.ItemName)
}

func TestNewSMTPNotifier_RequiresRecipient(t *testing.T) {
	_, err := NewSMTPNotifier(config.SMTPConfig{Host: "smtp.example.com", Port: 587}, 0, zap.NewNop())
	assert.Error(t, err)
}
