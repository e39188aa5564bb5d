package principal

// Role is the capability set a caller acts with. Authentication itself is
// handled upstream; handlers only translate trusted gateway headers into a
// Principal and pass it down explicitly.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleWaiter   Role = "waiter"
	RoleChef     Role = "chef"
	RoleCashier  Role = "cashier"
	RoleCustomer Role = "customer"
)

type Principal struct {
	UserID int64
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsStaff() bool {
	switch p.Role {
	case RoleAdmin, RoleWaiter, RoleChef, RoleCashier:
		return true
	}
	return false
}
