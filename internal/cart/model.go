package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhtruong/restaurant-pos/internal/catalog"
)

type Status string

const (
	StatusActive Status = "active"
	StatusLocked Status = "locked"
)

// Cart is the pre-order scratch area for one table. A table has at most
// one active cart; committing the cart into an order locks it, and a fresh
// cart is opened afterwards.
type Cart struct {
	ID        int64      `json:"id"`
	TableID   int64      `json:"table_id"`
	Status    Status     `json:"status"`
	Items     []CartItem `json:"cart_items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartItem struct {
	ID        int64            `json:"id"`
	CartID    int64            `json:"cart_id"`
	ProductID int64            `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Note      string           `json:"note"`
	Product   *catalog.Product `json:"product,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Total is the line total at the current catalog price. Prices are only
// frozen once the cart is committed into an order.
func (i *CartItem) Total() decimal.Decimal {
	if i.Product == nil {
		return decimal.Zero
	}
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
