package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type BuildState string

const (
	BuildStateBuilding   BuildState = "BUILDING"
	BuildStateValidating BuildState = "VALIDATING"
	BuildStateCommitting BuildState = "COMMITTING"
	BuildStateCompleted  BuildState = "COMPLETED"
)

// OrderLine is one item/quantity/price tuple. Price is captured when the
// line is added and may differ from the current catalog price.
type OrderLine struct {
	ItemName string          `json:"item_name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (l OrderLine) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is a committed, immutable set of lines under one id.
type Order struct {
	OrderID     string          `json:"order_id"`
	Lines       []OrderLine     `json:"lines"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderBuild is the order in progress. The caller owns it: workflow
// operations take a build and return a new one without mutating the input.
// Signature authenticates Lines between calls.
type OrderBuild struct {
	State     BuildState  `json:"state"`
	Lines     []OrderLine `json:"lines"`
	OrderID   string      `json:"order_id,omitempty"`
	Signature string      `json:"signature,omitempty"`
}

func NewOrderBuild() OrderBuild {
	return OrderBuild{State: BuildStateBuilding, Lines: []OrderLine{}}
}

// Total is sum(quantity_i * price_i) over all lines.
func (b OrderBuild) Total() decimal.Decimal {
	return TotalOf(b.Lines)
}

// WithLine returns a copy of b with line appended.
func (b OrderBuild) WithLine(line OrderLine) OrderBuild {
	lines := make([]OrderLine, 0, len(b.Lines)+1)
	lines = append(lines, b.Lines...)
	lines = append(lines, line)
	return OrderBuild{State: BuildStateBuilding, Lines: lines}
}

// Quantities sums line quantities per item name.
func (b OrderBuild) Quantities() map[string]int {
	return AggregateQuantities(b.Lines)
}

func TotalOf(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}

func AggregateQuantities(lines []OrderLine) map[string]int {
	out := make(map[string]int, len(lines))
	for _, l := range lines {
		out[l.ItemName] += l.Quantity
	}
	return out
}

// SortedNames returns the keys of quantities in lexical order, so stores
// touch rows in a stable order.
func SortedNames(quantities map[string]int) []string {
	names := make([]string, 0, len(quantities))
	for name := range quantities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type AddLineRequest struct {
	Build    OrderBuild `json:"build"`
	ItemName string     `json:"item_name" binding:"required"`
	Quantity int        `json:"quantity" binding:"required"`
}

type AddLineResponse struct {
	Build        OrderBuild      `json:"build"`
	RunningTotal decimal.Decimal `json:"running_total"`
}

type SubmitOrderRequest struct {
	Build OrderBuild `json:"build"`
}

type OrderSummaryRequest struct {
	Build OrderBuild `json:"build"`
}

// OrderSummaryResponse lists lines whose quantity now exceeds current stock.
type OrderSummaryResponse struct {
	Build       OrderBuild      `json:"build"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Warnings    []Shortage      `json:"warnings"`
}

type SubmitOrderResponse struct {
	OrderID     string          `json:"order_id"`
	Build       OrderBuild      `json:"build"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Message     string          `json:"message"`
}
