package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhtruong/restaurant-pos/internal/catalog"
	"github.com/nhtruong/restaurant-pos/internal/table"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusServed    Status = "served"
	StatusPaid      Status = "paid"
)

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusPreparing: true,
	},
	StatusPreparing: {
		StatusServed: true,
	},
	StatusServed: {
		StatusPaid: true,
	},
	StatusPaid: {},
}

func CanTransition(from, to Status) bool {
	transitions, ok := allowedTransitions[from]
	return ok && transitions[to]
}

// Order is a committed, priced snapshot of cart items. TotalAmount is
// always re-derived from the items after a mutation, never adjusted
// incrementally.
type Order struct {
	ID          int64           `json:"id"`
	TableID     int64           `json:"table_id"`
	TableNumber int             `json:"table_number"`
	TableStatus table.Status    `json:"table_status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      Status          `json:"status"`
	Items       []OrderItem     `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OrderItem freezes the product price at order-creation time. The price is
// never re-read from the catalog afterwards.
type OrderItem struct {
	ID          int64            `json:"id"`
	OrderID     int64            `json:"order_id"`
	ProductID   int64            `json:"product_id"`
	Quantity    int              `json:"quantity"`
	Price       decimal.Decimal  `json:"price"`
	Description string           `json:"description"`
	Product     *catalog.Product `json:"product,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// SplitLine asks to move a partial quantity of one order line to another
// table's order.
type SplitLine struct {
	OrderItemID int64 `json:"order_item_id"`
	Quantity    int   `json:"quantity"`
}

// ComputeTotal derives an order total from its items.
func ComputeTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].Price.Mul(decimal.NewFromInt(int64(items[i].Quantity))))
	}
	return total
}
