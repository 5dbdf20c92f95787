package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wichananm65/vendor-supply-backend/internal/apperr"
	"github.com/wichananm65/vendor-supply-backend/internal/material"
)

// Catalog is the part of the material service the cart needs.
type Catalog interface {
	Get(ctx context.Context, id int) (material.Material, error)
}

// Service orchestrates cart operations.
type Service struct {
	repo    Repository
	catalog Catalog
	now     func() time.Time
}

func NewService(repo Repository, catalog Catalog) *Service {
	return &Service{repo: repo, catalog: catalog, now: time.Now}
}

func (s *Service) Get(ctx context.Context, userID int) (Cart, error) {
	return s.repo.Get(ctx, userID)
}

// AddItem merges quantity into the line for materialID. The merged quantity
// must fit the material's current stock.
func (s *Service) AddItem(ctx context.Context, userID, materialID, quantity int) (Cart, error) {
	if quantity < 1 {
		return Cart{}, apperr.Validation("validation failed", map[string]string{"quantity": "quantity must be at least 1"})
	}

	m, err := s.catalog.Get(ctx, materialID)
	if err != nil {
		return Cart{}, err
	}

	return s.repo.Mutate(ctx, userID, func(c *Cart) error {
		merged := c.Quantity(materialID) + quantity
		if err := checkStock(m, merged); err != nil {
			return err
		}
		c.Put(m, merged, s.now().UTC())
		return nil
	})
}

// UpdateItem sets an absolute quantity; zero removes the line.
func (s *Service) UpdateItem(ctx context.Context, userID, materialID, quantity int) (Cart, error) {
	if quantity < 0 {
		return Cart{}, apperr.Validation("validation failed", map[string]string{"quantity": "quantity cannot be negative"})
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, materialID)
	}

	m, err := s.catalog.Get(ctx, materialID)
	if err != nil {
		return Cart{}, err
	}

	return s.repo.Mutate(ctx, userID, func(c *Cart) error {
		if c.Quantity(materialID) == 0 {
			return errItemNotInCart(materialID)
		}
		if err := checkStock(m, quantity); err != nil {
			return err
		}
		c.Put(m, quantity, s.now().UTC())
		return nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, materialID int) (Cart, error) {
	return s.repo.Mutate(ctx, userID, func(c *Cart) error {
		if !c.Remove(materialID, s.now().UTC()) {
			return errItemNotInCart(materialID)
		}
		return nil
	})
}

// Clear empties a user's cart.
func (s *Service) Clear(ctx context.Context, userID int) (Cart, error) {
	return s.repo.Mutate(ctx, userID, func(c *Cart) error {
		c.Clear(s.now().UTC())
		return nil
	})
}

func checkStock(m material.Material, quantity int) error {
	if quantity > m.Available() {
		return apperr.InsufficientStock(m.Name, m.Available())
	}
	if quantity < m.MinOrderQuantity {
		return apperr.Validation("validation failed", map[string]string{
			"quantity": fmt.Sprintf("minimum order quantity for %s is %d", m.Name, m.MinOrderQuantity),
		})
	}
	return nil
}

var ErrItemNotInCart = errors.New("item not in cart")

func errItemNotInCart(materialID int) error {
	return apperr.Wrap(apperr.KindNotFound, fmt.Sprintf("material %d is not in the cart", materialID), ErrItemNotInCart)
}
