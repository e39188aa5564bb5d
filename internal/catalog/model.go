package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductAvailable   ProductStatus = "available"
	ProductUnavailable ProductStatus = "unavailable"
)

// Product is the read-only view of the menu catalog consumed by the cart
// and order packages. Catalog management lives elsewhere.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Status      ProductStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Product) Available() bool {
	return p.Status == ProductAvailable
}
