package service

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type blockingNotifier struct {
	calls atomic.Int32
}

func (n *blockingNotifier) SendLowStockAlert(ctx context.Context, itemName string) error {
	n.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestAlertDispatcher_DoesNotBlockCaller(t *testing.T) {
	n := &blockingNotifier{}
	d := NewAlertDispatcher(n, 200*time.Millisecond, 2, zap.NewNop())

	start := time.Now()
	d.Dispatch("order-1", []string{"Widget", "Gadget", "Bolt"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	d.Wait()
	assert.Equal(t, int32(3), n.calls.Load())
}

func TestAlertDispatcher_SendsEveryItem(t *testing.T) {
	n := &recordingNotifier{err: errors.New("relay refused")}
	d := NewAlertDispatcher(n, time.Second, 0, zap.NewNop())

	d.Dispatch("order-1", []string{"Widget", "Gadget"})
	d.Dispatch("order-2", nil)
	d.Wait()

	sent := n.sent()
	sort.Strings(sent)
	assert.Equal(t, []string{"Gadget", "Widget"}, sent)
}
