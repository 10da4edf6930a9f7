package service

import (
	"strings"
	"sync"
	"time"
)

const orderIDLayout = "20060102150405.000000"

// OrderIDGenerator issues time-derived ids (YYYYMMDDhhmmssffffff, UTC).
// Ids are strictly increasing: when the clock has not advanced past the
// previous id, the next one is bumped by a microsecond.
type OrderIDGenerator struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewOrderIDGenerator() *OrderIDGenerator {
	return &OrderIDGenerator{now: time.Now}
}

func (g *OrderIDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.now().UTC().Truncate(time.Microsecond)
	if !t.After(g.last) {
		t = g.last.Add(time.Microsecond)
	}
	g.last = t
	return strings.Replace(t.Format(orderIDLayout), ".", "", 1)
}
