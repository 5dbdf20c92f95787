package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wichananm65/vendor-supply-backend/internal/address"
	"github.com/wichananm65/vendor-supply-backend/internal/apperr"
	"github.com/wichananm65/vendor-supply-backend/internal/cart"
	"github.com/wichananm65/vendor-supply-backend/internal/geo"
	"github.com/wichananm65/vendor-supply-backend/internal/material"
	"github.com/wichananm65/vendor-supply-backend/internal/metrics"
	"github.com/wichananm65/vendor-supply-backend/internal/money"
	"github.com/wichananm65/vendor-supply-backend/internal/user"
)

const (
	maxNumberAttempts = 3
	defaultPageSize   = 50
	maxPageSize       = 100
)

// Catalog is the part of the material service orders read from.
type Catalog interface {
	GetMany(ctx context.Context, ids []int) (map[int]material.Material, error)
}

// CartClearer empties a vendor's cart after checkout.
type CartClearer interface {
	Clear(ctx context.Context, userID int) (cart.Cart, error)
}

// AddressBook resolves a vendor's saved address.
type AddressBook interface {
	Get(ctx context.Context, userID, addressID int) (address.Address, error)
}

// Deps are the collaborators of the order service. Carts and Addresses are
// optional.
type Deps struct {
	Repo        Repository
	Catalog     Catalog
	Carts       CartClearer
	Addresses   AddressBook
	Sequencer   Sequencer
	DeliveryFee float64
}

type Service struct {
	repo        Repository
	catalog     Catalog
	carts       CartClearer
	addresses   AddressBook
	seq         Sequencer
	deliveryFee float64
	now         func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		repo:        d.Repo,
		catalog:     d.Catalog,
		carts:       d.Carts,
		addresses:   d.Addresses,
		seq:         d.Sequencer,
		deliveryFee: d.DeliveryFee,
		now:         time.Now,
	}
}

type LineInput struct {
	MaterialID int `json:"materialId" validate:"required,gt=0"`
	Quantity   int `json:"quantity" validate:"required,gte=1"`
}

// CreateInput is the checkout payload. Items is accepted as an alias of
// Materials; Materials wins when both are sent. AddressID picks a saved
// address and overrides DeliveryAddress.
type CreateInput struct {
	Materials       []LineInput     `json:"materials" validate:"required,min=1,dive"`
	Items           []LineInput     `json:"items" validate:"-"`
	DeliveryAddress DeliveryAddress `json:"deliveryAddress"`
	AddressID       int             `json:"addressId" validate:"gte=0"`
	PaymentMethod   string          `json:"paymentMethod" validate:"required,oneof=cash online"`
	Notes           string          `json:"notes" validate:"max=1000"`
	ClearCart       bool            `json:"clearCart"`
}

// StatusInput is the supplier's status update payload.
type StatusInput struct {
	Status            Status     `json:"status"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
	TrackingNumber    string     `json:"trackingNumber"`
	Notes             string     `json:"notes"`
	Location          string     `json:"location"`
	Reason            string     `json:"reason"`
}

func (s *Service) Create(ctx context.Context, ident user.Identity, in CreateInput) (Order, error) {
	if !ident.IsVendor() {
		return Order{}, apperr.Forbidden("only vendors can place orders")
	}
	if len(in.Materials) == 0 {
		in.Materials = in.Items
	}
	in.Items = nil
	if err := apperr.ValidateStruct(in); err != nil {
		return Order{}, err
	}
	if in.AddressID > 0 && s.addresses != nil {
		saved, err := s.addresses.Get(ctx, ident.UserID, in.AddressID)
		if err != nil {
			return Order{}, err
		}
		in.DeliveryAddress = fromSaved(saved)
	}
	if in.DeliveryAddress.Empty() {
		return Order{}, apperr.Validation("validation failed", map[string]string{
			"deliveryAddress": "deliveryAddress is required",
		})
	}

	lines := make([]material.StockLine, 0, len(in.Materials))
	for _, l := range in.Materials {
		lines = append(lines, material.StockLine{MaterialID: l.MaterialID, Quantity: l.Quantity})
	}
	lines = material.MergeLines(lines)

	ids := make([]int, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.MaterialID)
	}
	found, err := s.catalog.GetMany(ctx, ids)
	if err != nil {
		return Order{}, err
	}

	items := make([]Item, 0, len(lines))
	totals := make([]float64, 0, len(lines))
	totalItems := 0
	for _, l := range lines {
		m, ok := found[l.MaterialID]
		if !ok {
			return Order{}, apperr.Wrap(apperr.KindNotFound, fmt.Sprintf("material %d not found", l.MaterialID), material.ErrNotFound)
		}
		if l.Quantity > m.Available() {
			metrics.StockReservations.WithLabelValues("insufficient").Inc()
			return Order{}, apperr.InsufficientStock(m.Name, m.Available())
		}
		if l.Quantity < m.MinOrderQuantity {
			return Order{}, apperr.Validation("validation failed", map[string]string{
				"quantity": fmt.Sprintf("minimum order quantity for %s is %d", m.Name, m.MinOrderQuantity),
			})
		}

		item := Item{
			MaterialID: m.ID,
			SupplierID: m.SupplierID,
			Name:       m.Name,
			Category:   m.Category,
			Unit:       m.Unit,
			Quantity:   l.Quantity,
			Price:      m.Price,
			TotalPrice: money.LineTotal(m.Price, l.Quantity),
		}
		items = append(items, item)
		totals = append(totals, item.TotalPrice)
		totalItems += l.Quantity
	}

	now := s.now().UTC()
	subtotal := money.Sum(totals...)
	fee := s.fee(in.DeliveryAddress, found)
	total := money.Total(subtotal, fee, 0, 0)

	o := Order{
		VendorID:        ident.UserID,
		Items:           items,
		TotalItems:      totalItems,
		Subtotal:        subtotal,
		DeliveryFee:     fee,
		TotalAmount:     total,
		Status:          StatusPending,
		DeliveryAddress: in.DeliveryAddress,
		Payment:         Payment{Method: in.PaymentMethod, Status: "pending", Amount: total},
		Notes:           strings.TrimSpace(in.Notes),
		Tracking: []TrackingEvent{{
			Status:    StatusPending,
			Timestamp: now,
			UpdatedBy: ident.UserID,
			Note:      "Order placed",
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.place(ctx, o, now)
	if err != nil {
		var stockErr *material.StockError
		if errors.As(err, &stockErr) {
			metrics.StockReservations.WithLabelValues("insufficient").Inc()
			return Order{}, apperr.InsufficientStock(stockErr.Name, stockErr.Available)
		}
		if errors.Is(err, material.ErrNotFound) {
			return Order{}, apperr.Wrap(apperr.KindNotFound, "material not found", err)
		}
		return Order{}, err
	}
	metrics.StockReservations.WithLabelValues("reserved").Inc()
	metrics.OrdersTotal.WithLabelValues(string(StatusPending)).Inc()

	if in.ClearCart && s.carts != nil {
		if _, err := s.carts.Clear(ctx, ident.UserID); err != nil {
			logrus.WithFields(logrus.Fields{
				"order_number": created.OrderNumber,
				"vendor_id":    ident.UserID,
			}).WithError(err).Warn("Failed to clear cart after checkout")
		}
	}
	return created, nil
}

// place stores o under a fresh order number, drawing a new one when the
// number is already taken.
func (s *Service) place(ctx context.Context, o Order, now time.Time) (Order, error) {
	day := DayKey(now)
	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		var n int
		n, err = s.seq.Next(ctx, day)
		if err != nil {
			return Order{}, err
		}
		o.OrderNumber = FormatOrderNumber(now, n)

		var created Order
		created, err = s.repo.Create(ctx, o)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, ErrDuplicateNumber) {
			return Order{}, err
		}
		logrus.WithField("order_number", o.OrderNumber).Warn("Order number taken, retrying")
	}
	return Order{}, apperr.Wrap(apperr.KindConflict, "could not allocate an order number", err)
}

// fee prices delivery by the farthest supplier when every distance is known
// and falls back to the flat fee otherwise.
func (s *Service) fee(addr DeliveryAddress, materials map[int]material.Material) float64 {
	dest := addr.Location()
	if !dest.HasCoordinates() {
		return s.deliveryFee
	}
	farthest := 0.0
	for _, m := range materials {
		if !m.Location.HasCoordinates() {
			return s.deliveryFee
		}
		if d := geo.Haversine(m.Location.Point(), dest.Point()); d > farthest {
			farthest = d
		}
	}
	return geo.DeliveryFee(farthest)
}

func fromSaved(a address.Address) DeliveryAddress {
	return DeliveryAddress{
		Address:   a.Line,
		City:      a.City,
		State:     a.State,
		Pincode:   a.Pincode,
		Phone:     a.Phone,
		Latitude:  a.Latitude,
		Longitude: a.Longitude,
	}
}

// Get returns an order to one of its parties.
func (s *Service) Get(ctx context.Context, ident user.Identity, id int) (Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, orderNotFound(id, err)
	}
	if !isParty(o, ident) {
		return Order{}, apperr.Forbidden("you do not have access to this order")
	}
	return o, nil
}

// List returns a vendor's own orders or the orders containing a supplier's
// items.
func (s *Service) List(ctx context.Context, ident user.Identity, filter Filter) ([]Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalidStatus(filter.Status)
	}
	filter.VendorID, filter.SupplierID = 0, 0
	switch ident.Role {
	case user.RoleVendor:
		filter.VendorID = ident.UserID
	case user.RoleSupplier:
		filter.SupplierID = ident.UserID
	default:
		return nil, apperr.Forbidden("unknown role")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Page > 1 {
		filter.Offset = (filter.Page - 1) * filter.Limit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// UpdateStatus moves an order forward on behalf of a supplier with items in
// it. A move to cancelled goes through Cancel.
func (s *Service) UpdateStatus(ctx context.Context, ident user.Identity, id int, in StatusInput) (Order, error) {
	if !in.Status.Valid() {
		return Order{}, invalidStatus(in.Status)
	}
	if in.Status == StatusCancelled {
		reason := in.Reason
		if reason == "" {
			reason = in.Notes
		}
		return s.Cancel(ctx, ident, id, reason)
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, orderNotFound(id, err)
	}
	if !ident.IsSupplier() || !o.HasSupplier(ident.UserID) {
		return Order{}, apperr.Forbidden("only a supplier with items in this order can update its status")
	}
	if !CanTransition(o.Status, in.Status) {
		return Order{}, apperr.InvalidTransition("cannot move order from %s to %s", o.Status, in.Status)
	}

	note := strings.TrimSpace(in.Notes)
	if note == "" {
		note = "Status updated to " + string(in.Status)
	}
	updated, err := s.repo.UpdateStatus(ctx, id, StatusUpdate{
		From:              o.Status,
		To:                in.Status,
		At:                s.now().UTC(),
		By:                ident.UserID,
		Note:              note,
		Location:          in.Location,
		EstimatedDelivery: in.EstimatedDelivery,
		TrackingNumber:    strings.TrimSpace(in.TrackingNumber),
	})
	if errors.Is(err, ErrStatusChanged) {
		return Order{}, apperr.Wrap(apperr.KindConflict, "order status changed, reload and retry", err)
	}
	if err != nil {
		return Order{}, orderNotFound(id, err)
	}
	metrics.OrdersTotal.WithLabelValues(string(updated.Status)).Inc()
	return updated, nil
}

// Cancel cancels an order for its vendor or an involved supplier and puts
// the reserved quantities back.
func (s *Service) Cancel(ctx context.Context, ident user.Identity, id int, reason string) (Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, orderNotFound(id, err)
	}
	if !isParty(o, ident) {
		return Order{}, apperr.Forbidden("only the ordering vendor or an involved supplier can cancel this order")
	}
	if !o.Status.Cancellable() {
		return Order{}, apperr.InvalidTransition("order cannot be cancelled once %s", o.Status)
	}

	cancelled, err := s.repo.Cancel(ctx, id, Cancellation{
		At:     s.now().UTC(),
		By:     ident.UserID,
		Reason: strings.TrimSpace(reason),
	})
	if errors.Is(err, ErrNotCancellable) {
		return Order{}, apperr.Wrap(apperr.KindInvalidTransition, "order can no longer be cancelled", err)
	}
	if err != nil {
		return Order{}, orderNotFound(id, err)
	}
	metrics.StockReservations.WithLabelValues("released").Inc()
	metrics.OrdersTotal.WithLabelValues(string(StatusCancelled)).Inc()
	return cancelled, nil
}

func isParty(o Order, ident user.Identity) bool {
	switch ident.Role {
	case user.RoleVendor:
		return o.VendorID == ident.UserID
	case user.RoleSupplier:
		return o.HasSupplier(ident.UserID)
	}
	return false
}

func invalidStatus(s Status) error {
	valid := make([]string, len(Statuses))
	for i, v := range Statuses {
		valid[i] = string(v)
	}
	err := apperr.Validation(fmt.Sprintf("invalid status %q", s), map[string]string{
		"status": "status must be one of: " + strings.Join(valid, ", "),
	})
	err.Extra = map[string]any{"validStatuses": valid}
	return err
}

func orderNotFound(id int, err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, fmt.Sprintf("order %d not found", id), err)
	}
	return err
}
