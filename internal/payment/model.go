package payment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Method string

const (
	MethodCash          Method = "cash"
	MethodCreditCard    Method = "credit_card"
	MethodMobilePayment Method = "mobile_payment"
	MethodQRIS          Method = "qris"
)

// IntentTTL is the validity window of a payment intent. It is enforced by
// comparing against the current time at settlement, not by a timer.
const IntentTTL = 15 * time.Minute

type Payment struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        Method          `json:"payment_method"`
	Status        Status          `json:"status"`
	TransactionID string          `json:"transaction_id"`
	ExpiredAt     time.Time       `json:"expired_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Invoice is the immutable record of a settlement. Exactly one is created
// when a payment completes, never reversed.
type Invoice struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        Method          `json:"method"`
	InvoiceNumber string          `json:"invoice_number"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Intent is the renderable QR payload returned to the cashier screen.
type Intent struct {
	QRURL         string          `json:"qr_url"`
	Amount        decimal.Decimal `json:"amount"`
	TableNumber   int             `json:"table"`
	OrderID       int64           `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	ExpiresIn     int             `json:"expires_in"`
	ExpiredAt     time.Time       `json:"expired_at"`
}

// TransactionCode derives the transfer reference deterministically from the
// order id, so the token embedded in the bank narration can be matched back
// without any shared state.
func TransactionCode(orderID int64) string {
	return fmt.Sprintf("SEVQR OD%d", orderID)
}

// NewInvoiceNumber builds a unique invoice number from the order id and the
// settlement timestamp.
func NewInvoiceNumber(orderID int64, at time.Time) string {
	return fmt.Sprintf("INV%d_%s", orderID, at.Format("020106150405"))
}
