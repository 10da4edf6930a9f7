package service

import (
	"context"
	"sync"
	"time"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/notifier"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AlertDispatcher sends low-stock alerts in the background so a slow relay
// never delays the commit result.
type AlertDispatcher struct {
	notifier notifier.Notifier
	timeout  time.Duration
	limit    int
	logger   *zap.Logger
	wg       sync.WaitGroup
}

func NewAlertDispatcher(n notifier.Notifier, timeout time.Duration, limit int, logger *zap.Logger) *AlertDispatcher {
	if limit <= 0 {
		limit = 1
	}
	return &AlertDispatcher{
		notifier: n,
		timeout:  timeout,
		limit:    limit,
		logger:   logger,
	}
}

// Dispatch alerts for items asynchronously. Each alert gets its own timeout;
// failures are logged and dropped.
func (d *AlertDispatcher) Dispatch(orderID string, items []string) {
	if len(items) == 0 {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		var g errgroup.Group
		g.SetLimit(d.limit)
		for _, item := range items {
			item := item
			g.Go(func() error {
				ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
				defer cancel()

				if err := d.notifier.SendLowStockAlert(ctx, item); err != nil {
					d.logger.Error("Failed to send low stock alert",
						zap.String("order_id", orderID),
						zap.String("item_name", item),
						zap.Error(err))
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Wait blocks until every dispatched alert has finished.
func (d *AlertDispatcher) Wait() {
	d.wg.Wait()
}
