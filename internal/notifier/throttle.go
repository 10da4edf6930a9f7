package notifier

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Throttle decides whether an alert for an item may be sent now.
type Throttle interface {
	Allow(ctx context.Context, itemName string) (bool, error)
	Release(ctx context.Context, itemName string) error
}

// RedisThrottle allows one alert per item per cooldown window.
type RedisThrottle struct {
	client   *redis.Client
	cooldown time.Duration
	prefix   string
}

func NewRedisThrottle(client *redis.Client, cooldown time.Duration) *RedisThrottle {
	return &RedisThrottle{client: client, cooldown: cooldown, prefix: "low-stock-alert:"}
}

func (t *RedisThrottle) Allow(ctx context.Context, itemName string) (bool, error) {
	return t.client.SetNX(ctx, t.prefix+itemName, "1", t.cooldown).Result()
}

// Release clears the cooldown so the next commit can retry a failed alert.
func (t *RedisThrottle) Release(ctx context.Context, itemName string) error {
	return t.client.Del(ctx, t.prefix+itemName).Err()
}

// ThrottledNotifier suppresses repeated alerts for the same item. When the
// throttle itself fails, the alert is sent anyway.
type ThrottledNotifier struct {
	next     Notifier
	throttle Throttle
	logger   *zap.Logger
}

func NewThrottledNotifier(next Notifier, throttle Throttle, logger *zap.Logger) *ThrottledNotifier {
	return &ThrottledNotifier{next: next, throttle: throttle, logger: logger}
}

func (n *ThrottledNotifier) SendLowStockAlert(ctx context.Context, itemName string) error {
	allowed, err := n.throttle.Allow(ctx, itemName)
	if err != nil {
		n.logger.Warn("Alert throttle unavailable",
			zap.String("item_name", itemName),
			zap.Error(err))
		return n.next.SendLowStockAlert(ctx, itemName)
	}
	if !allowed {
		n.logger.Debug("Low stock alert suppressed", zap.String("item_name", itemName))
		return nil
	}

	if err := n.next.SendLowStockAlert(ctx, itemName); err != nil {
		if rerr := n.throttle.Release(ctx, itemName); rerr != nil {
			n.logger.Warn("Failed to release alert throttle",
				zap.String("item_name", itemName),
				zap.Error(rerr))
		}
		return err
	}
	return nil
}
