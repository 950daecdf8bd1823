package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCashier  Role = "cashier"
	RoleCustomer Role = "customer"
	RoleCourier  Role = "courier"
	RoleSupplier Role = "supplier"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleCashier, RoleCustomer, RoleCourier, RoleSupplier:
		return true
	}
	return false
}

// IsStaff reports whether r may operate the store counter.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleCashier
}

// User represents a registered account.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}
