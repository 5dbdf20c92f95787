package cart

import (
	"context"
	"sync"
)

// Repository stores one cart per user. Get returns an empty cart for users
// that have never had one.
type Repository interface {
	Get(ctx context.Context, userID int) (Cart, error)
	// Mutate applies fn to the user's cart atomically and persists the result.
	// If fn returns an error nothing is written.
	Mutate(ctx context.Context, userID int, fn func(*Cart) error) (Cart, error)
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu    sync.Mutex
	carts map[int]Cart
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{carts: make(map[int]Cart)}
}

func (r *InMemoryRepository) Get(_ context.Context, userID int) (Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[userID]
	if !ok {
		return newCart(userID), nil
	}
	return copyCart(c), nil
}

func (r *InMemoryRepository) Mutate(_ context.Context, userID int, fn func(*Cart) error) (Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[userID]
	if !ok {
		c = newCart(userID)
	}
	c = copyCart(c)
	if err := fn(&c); err != nil {
		return Cart{}, err
	}
	r.carts[userID] = c
	return copyCart(c), nil
}

func copyCart(c Cart) Cart {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}
