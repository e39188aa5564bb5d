package reservation

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// CancellationWindow is how far before the reservation time a customer may
// still cancel or amend it.
const CancellationWindow = 6 * time.Hour

type Reservation struct {
	ID              int64     `json:"id"`
	TableID         int64     `json:"table_id"`
	CustomerID      int64     `json:"customer_id"`
	CustomerName    string    `json:"customer_name"`
	CustomerContact string    `json:"customer_contact"`
	ReservationTime time.Time `json:"reservation_time"`
	NumberOfPeople  int       `json:"number_of_people"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CanCancelAt reports whether the cancellation window is still open at the
// given moment.
func (r *Reservation) CanCancelAt(now time.Time) bool {
	return now.Before(r.ReservationTime.Add(-CancellationWindow))
}
