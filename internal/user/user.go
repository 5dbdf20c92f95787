package user

import (
	"time"

	"github.com/wichananm65/vendor-supply-backend/internal/geo"
)

type Role string

const (
	RoleVendor   Role = "vendor"
	RoleSupplier Role = "supplier"
)

func (r Role) Valid() bool {
	return r == RoleVendor || r == RoleSupplier
}

type User struct {
	ID           int          `json:"id"`
	Email        string       `json:"email"`
	Password     string       `json:"password,omitempty"`
	Name         string       `json:"name"`
	Phone        string       `json:"phone"`
	Role         Role         `json:"role"`
	BusinessName string       `json:"businessName,omitempty"`
	Location     geo.Location `json:"location"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (u User) IsSupplier() bool { return u.Role == RoleSupplier }

// sanitizeUser blanks the password hash before a user leaves the service.
func sanitizeUser(u User) User {
	u.Password = ""
	return u
}
