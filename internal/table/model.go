package table

import "time"

type Status string

const (
	StatusAvailable Status = "available"
	StatusOccupied  Status = "occupied"
	StatusReserved  Status = "reserved"
)

// Table is a physical table in the dining room. A disabled table
// (IsActive=false) is frozen: it accepts no status change and cannot gain a
// new cart or order.
type Table struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	Capacity  int       `json:"capacity"`
	Status    Status    `json:"status"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var allowedTransitions = map[Status]map[Status]bool{
	StatusAvailable: {
		StatusOccupied: true,
		StatusReserved: true,
	},
	StatusReserved: {
		StatusOccupied:  true,
		StatusAvailable: true,
	},
	StatusOccupied: {
		StatusAvailable: true,
	},
}

// CanTransition reports whether the status machine allows moving from one
// status to another. Guard rules layered on top (disabled table, open
// order) are checked by the service.
func CanTransition(from, to Status) bool {
	transitions, ok := allowedTransitions[from]
	return ok && transitions[to]
}
