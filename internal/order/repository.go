package order

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/wichananm65/vendor-supply-backend/internal/material"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrDuplicateNumber = errors.New("order number already used")
	ErrStatusChanged   = errors.New("order status changed concurrently")
	ErrNotCancellable  = errors.New("order can no longer be cancelled")
)

// Filter narrows List. A zero field is ignored. Page is 1-based and, when
// set, replaces Offset once Limit has been capped.
type Filter struct {
	VendorID   int
	SupplierID int
	Status     Status
	Page       int
	Limit      int
	Offset     int
}

type Repository interface {
	// Create reserves the order's stock and stores the order as one unit.
	Create(ctx context.Context, o Order) (Order, error)
	GetByID(ctx context.Context, id int) (Order, error)
	List(ctx context.Context, filter Filter) ([]Order, error)
	// UpdateStatus applies u only while the order is still in u.From.
	UpdateStatus(ctx context.Context, id int, u StatusUpdate) (Order, error)
	// Cancel flips a cancellable order to cancelled and returns its stock.
	Cancel(ctx context.Context, id int, c Cancellation) (Order, error)
}

type InMemoryRepository struct {
	mu     sync.Mutex
	orders map[int]Order
	nextID int
	stock  material.Stock
}

func NewInMemoryRepository(stock material.Stock) *InMemoryRepository {
	return &InMemoryRepository{
		orders: make(map[int]Order),
		nextID: 1,
		stock:  stock,
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.orders {
		if existing.OrderNumber == o.OrderNumber {
			return Order{}, ErrDuplicateNumber
		}
	}
	if err := r.stock.Reserve(ctx, o.StockLines()); err != nil {
		return Order{}, err
	}

	o.ID = r.nextID
	r.nextID++
	r.orders[o.ID] = copyOrder(o)
	return o, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return copyOrder(o), nil
}

func (r *InMemoryRepository) List(_ context.Context, filter Filter) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Order, 0, len(r.orders))
	for _, o := range r.orders {
		if filter.VendorID != 0 && o.VendorID != filter.VendorID {
			continue
		}
		if filter.SupplierID != 0 && !o.HasSupplier(filter.SupplierID) {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, copyOrder(o))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []Order{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) UpdateStatus(_ context.Context, id int, u StatusUpdate) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if o.Status != u.From {
		return Order{}, ErrStatusChanged
	}
	o = copyOrder(o)
	o.apply(u)
	r.orders[id] = o
	return copyOrder(o), nil
}

func (r *InMemoryRepository) Cancel(ctx context.Context, id int, c Cancellation) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if !o.Status.Cancellable() {
		return Order{}, ErrNotCancellable
	}
	if err := r.stock.Release(ctx, o.StockLines()); err != nil {
		return Order{}, err
	}
	o = copyOrder(o)
	o.cancel(c)
	r.orders[id] = o
	return copyOrder(o), nil
}

// copyOrder detaches the slices so callers cannot mutate stored history.
func copyOrder(o Order) Order {
	o.Items = append([]Item(nil), o.Items...)
	o.Tracking = append([]TrackingEvent(nil), o.Tracking...)
	return o
}
