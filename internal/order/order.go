package order

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/wichananm65/vendor-supply-backend/internal/geo"
	"github.com/wichananm65/vendor-supply-backend/internal/material"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusProcessing     Status = "processing"
	StatusShipped        Status = "shipped"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusReturned       Status = "returned"
)

// Statuses lists every status an order can hold.
var Statuses = []Status{
	StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
	StatusOutForDelivery, StatusDelivered, StatusCancelled, StatusReturned,
}

// happyPath is the forward order of fulfilment.
var happyPath = []Status{
	StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusOutForDelivery, StatusDelivered,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusReturned
}

// Cancellable reports whether an order in s may still be cancelled.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusProcessing
}

func cancellableStatuses() []string {
	return []string{string(StatusPending), string(StatusConfirmed), string(StatusProcessing)}
}

func pathIndex(s Status) int {
	for i, v := range happyPath {
		if v == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether an order may move from one status to another.
// Forward moves along the happy path may skip steps.
func CanTransition(from, to Status) bool {
	if from.Terminal() || from == to || !to.Valid() {
		return false
	}
	switch to {
	case StatusCancelled:
		return from.Cancellable()
	case StatusReturned:
		return from == StatusShipped || from == StatusOutForDelivery
	}
	fi, ti := pathIndex(from), pathIndex(to)
	return fi >= 0 && ti > fi
}

type Item struct {
	MaterialID int               `json:"materialId"`
	SupplierID int               `json:"supplierId"`
	Name       string            `json:"name"`
	Category   material.Category `json:"category"`
	Unit       material.Unit     `json:"unit"`
	Quantity   int               `json:"quantity"`
	Price      float64           `json:"price"`
	TotalPrice float64           `json:"totalPrice"`
}

// DeliveryAddress accepts either a plain string or an object on input.
type DeliveryAddress struct {
	Address   string  `json:"address"`
	City      string  `json:"city,omitempty"`
	State     string  `json:"state,omitempty"`
	Pincode   string  `json:"pincode,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

func (a *DeliveryAddress) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = DeliveryAddress{Address: strings.TrimSpace(s)}
		return nil
	}
	if data[0] != '{' {
		return errors.New("deliveryAddress must be a string or an object")
	}

	type plain DeliveryAddress
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = DeliveryAddress(p)
	return nil
}

func (a DeliveryAddress) Empty() bool {
	return strings.TrimSpace(a.Address) == "" && a.City == "" && a.Pincode == ""
}

func (a DeliveryAddress) Location() geo.Location {
	return geo.Location{
		Latitude: a.Latitude, Longitude: a.Longitude,
		Address: a.Address, City: a.City, State: a.State, Pincode: a.Pincode,
	}
}

type Payment struct {
	Method string  `json:"method"`
	Status string  `json:"status"`
	Amount float64 `json:"amount"`
}

// TrackingEvent is one entry of an order's append-only status history.
type TrackingEvent struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	UpdatedBy int       `json:"updatedBy"`
	Note      string    `json:"note,omitempty"`
	Location  string    `json:"location,omitempty"`
}

type Order struct {
	ID                int             `json:"id"`
	OrderNumber       string          `json:"orderNumber"`
	VendorID          int             `json:"vendorId"`
	Items             []Item          `json:"items"`
	TotalItems        int             `json:"totalItems"`
	Subtotal          float64         `json:"subtotal"`
	DeliveryFee       float64         `json:"deliveryFee"`
	Discount          float64         `json:"discount"`
	Taxes             float64         `json:"taxes"`
	TotalAmount       float64         `json:"totalAmount"`
	Status            Status          `json:"status"`
	DeliveryAddress   DeliveryAddress `json:"deliveryAddress"`
	Payment           Payment         `json:"payment"`
	Notes             string          `json:"notes,omitempty"`
	TrackingNumber    string          `json:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time      `json:"estimatedDelivery,omitempty"`
	ActualDelivery    *time.Time      `json:"actualDelivery,omitempty"`
	CancelledAt       *time.Time      `json:"cancelledAt,omitempty"`
	CancelledBy       *int            `json:"cancelledBy,omitempty"`
	CancelReason      string          `json:"cancelReason,omitempty"`
	Tracking          []TrackingEvent `json:"tracking"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// SupplierIDs returns the distinct suppliers with items in the order.
func (o Order) SupplierIDs() []int {
	seen := map[int]bool{}
	out := make([]int, 0, len(o.Items))
	for _, it := range o.Items {
		if !seen[it.SupplierID] {
			seen[it.SupplierID] = true
			out = append(out, it.SupplierID)
		}
	}
	return out
}

func (o Order) HasSupplier(supplierID int) bool {
	for _, it := range o.Items {
		if it.SupplierID == supplierID {
			return true
		}
	}
	return false
}

// StockLines converts the items into the quantities held in stock.
func (o Order) StockLines() []material.StockLine {
	lines := make([]material.StockLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, material.StockLine{MaterialID: it.MaterialID, Quantity: it.Quantity})
	}
	return lines
}

// StatusUpdate is a non-cancelling transition applied by a supplier.
type StatusUpdate struct {
	From              Status
	To                Status
	At                time.Time
	By                int
	Note              string
	Location          string
	EstimatedDelivery *time.Time
	TrackingNumber    string
}

func (u StatusUpdate) event() TrackingEvent {
	return TrackingEvent{Status: u.To, Timestamp: u.At, UpdatedBy: u.By, Note: u.Note, Location: u.Location}
}

type Cancellation struct {
	At     time.Time
	By     int
	Reason string
}

func (c Cancellation) event() TrackingEvent {
	note := "Order cancelled"
	if c.Reason != "" {
		note = "Order cancelled: " + c.Reason
	}
	return TrackingEvent{Status: StatusCancelled, Timestamp: c.At, UpdatedBy: c.By, Note: note}
}

// apply records a transition on o. The caller has already checked it.
func (o *Order) apply(u StatusUpdate) {
	o.Status = u.To
	o.Tracking = append(o.Tracking, u.event())
	o.UpdatedAt = u.At
	if u.EstimatedDelivery != nil {
		o.EstimatedDelivery = u.EstimatedDelivery
	}
	if u.TrackingNumber != "" {
		o.TrackingNumber = u.TrackingNumber
	}
	if u.To == StatusDelivered && o.ActualDelivery == nil {
		at := u.At
		o.ActualDelivery = &at
	}
}

func (o *Order) cancel(c Cancellation) {
	at, by := c.At, c.By
	o.Status = StatusCancelled
	o.CancelledAt = &at
	o.CancelledBy = &by
	o.CancelReason = c.Reason
	o.Tracking = append(o.Tracking, c.event())
	o.UpdatedAt = c.At
}
