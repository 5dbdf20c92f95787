package cart

import (
	"time"

	"github.com/wichananm65/vendor-supply-backend/internal/material"
	"github.com/wichananm65/vendor-supply-backend/internal/money"
)

type Item struct {
	MaterialID int           `json:"materialId"`
	SupplierID int           `json:"supplierId"`
	Name       string        `json:"name"`
	Unit       material.Unit `json:"unit"`
	Quantity   int           `json:"quantity"`
	Price      float64       `json:"price"`
	TotalPrice float64       `json:"totalPrice"`
	AddedAt    time.Time     `json:"addedAt"`
}

// Cart is a vendor's pending selection. Totals are derived from Items and
// recomputed on every mutation.
type Cart struct {
	UserID      int       `json:"userId"`
	Items       []Item    `json:"items"`
	TotalItems  int       `json:"totalItems"`
	TotalAmount float64   `json:"totalAmount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newCart(userID int) Cart {
	return Cart{UserID: userID, Items: []Item{}}
}

func (c *Cart) find(materialID int) int {
	for i, it := range c.Items {
		if it.MaterialID == materialID {
			return i
		}
	}
	return -1
}

// Quantity returns how many units of materialID the cart holds.
func (c *Cart) Quantity(materialID int) int {
	if i := c.find(materialID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// Put sets the line for m to quantity, adding it if absent. Price and name
// are refreshed from m.
func (c *Cart) Put(m material.Material, quantity int, now time.Time) {
	line := Item{
		MaterialID: m.ID,
		SupplierID: m.SupplierID,
		Name:       m.Name,
		Unit:       m.Unit,
		Quantity:   quantity,
		Price:      m.Price,
		AddedAt:    now,
	}
	if i := c.find(m.ID); i >= 0 {
		line.AddedAt = c.Items[i].AddedAt
		c.Items[i] = line
	} else {
		c.Items = append(c.Items, line)
	}
	c.UpdatedAt = now
	c.Recalculate()
}

// Remove drops the line for materialID and reports whether it existed.
func (c *Cart) Remove(materialID int, now time.Time) bool {
	i := c.find(materialID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.UpdatedAt = now
	c.Recalculate()
	return true
}

func (c *Cart) Clear(now time.Time) {
	c.Items = []Item{}
	c.UpdatedAt = now
	c.Recalculate()
}

// Recalculate rebuilds line and cart totals from scratch.
func (c *Cart) Recalculate() {
	c.TotalItems = 0
	amounts := make([]float64, 0, len(c.Items))
	for i := range c.Items {
		c.Items[i].TotalPrice = money.LineTotal(c.Items[i].Price, c.Items[i].Quantity)
		c.TotalItems += c.Items[i].Quantity
		amounts = append(amounts, c.Items[i].TotalPrice)
	}
	c.TotalAmount = money.Sum(amounts...)
}
