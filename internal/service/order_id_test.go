package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderIDGenerator_Format(t *testing.T) {
	g := NewOrderIDGenerator()
	g.now = func() time.Time { return time.Date(2026, 10, 18, 9, 30, 15, 123456789, time.UTC) }

	assert.Equal(t, "20261018093015123456", g.Next())
}

func TestOrderIDGenerator_MonotonicWithinSameInstant(t *testing.T) {
	g := NewOrderIDGenerator()
	frozen := time.Date(2026, 10, 18, 9, 30, 15, 0, time.UTC)
	g.now = func() time.Time { return frozen }

	assert.Equal(t, "20261018093015000000", g.Next())
	assert.Equal(t, "20261018093015000001", g.Next())
	assert.Equal(t, "20261018093015000002", g.Next())
}

func TestOrderIDGenerator_ClockStepsBack(t *testing.T) {
	g := NewOrderIDGenerator()
	now := time.Date(2026, 10, 18, 9, 30, 15, 0, time.UTC)
	g.now = func() time.Time { return now }
	first := g.Next()

	now = now.Add(-time.Second)
	second := g.Next()

	assert.Greater(t, second, first)
}

func TestOrderIDGenerator_ConcurrentUnique(t *testing.T) {
	g := NewOrderIDGenerator()

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = make(map[string]struct{})
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				id := g.Next()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 2000)
}
