package address

import (
	"time"

	"github.com/wichananm65/vendor-supply-backend/internal/geo"
)

// Address is a saved delivery address of a user.
type Address struct {
	AddressID int       `json:"addressId"`
	UserID    int       `json:"userId"`
	Label     string    `json:"label"`
	Line      string    `json:"line"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Pincode   string    `json:"pincode"`
	Latitude  float64   `json:"latitude,omitempty"`
	Longitude float64   `json:"longitude,omitempty"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a Address) Location() geo.Location {
	return geo.Location{
		Latitude:  a.Latitude,
		Longitude: a.Longitude,
		Address:   a.Line,
		City:      a.City,
		State:     a.State,
		Pincode:   a.Pincode,
	}
}

// Input is the create/replace payload.
type Input struct {
	Label     string  `json:"label" validate:"max=50"`
	Line      string  `json:"line" validate:"required,max=300"`
	City      string  `json:"city" validate:"max=100"`
	State     string  `json:"state" validate:"max=100"`
	Pincode   string  `json:"pincode" validate:"required,pincode"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Phone     string  `json:"phone" validate:"max=20"`
}
