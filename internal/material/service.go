package material

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wichananm65/vendor-supply-backend/internal/apperr"
	"github.com/wichananm65/vendor-supply-backend/internal/geo"
	"github.com/wichananm65/vendor-supply-backend/internal/metrics"
	"github.com/wichananm65/vendor-supply-backend/internal/money"
	"github.com/wichananm65/vendor-supply-backend/internal/user"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// SupplierDirectory resolves the supplier that owns a material.
type SupplierDirectory interface {
	GetByID(ctx context.Context, id int) (user.User, error)
}

type Service struct {
	repo      Repository
	suppliers SupplierDirectory
	now       func() time.Time
}

func NewService(repo Repository, suppliers SupplierDirectory) *Service {
	return &Service{repo: repo, suppliers: suppliers, now: time.Now}
}

// Input is the create/replace payload for a material.
type Input struct {
	Name             string        `json:"name" validate:"required,max=120"`
	Description      string        `json:"description" validate:"max=2000"`
	Category         Category      `json:"category" validate:"required,oneof=vegetables fruits grains spices dairy meat oils beverages packaging cleaning other"`
	Price            *float64      `json:"price" validate:"required,gte=0"`
	Quantity         *int          `json:"quantity" validate:"required,gte=0"`
	Unit             Unit          `json:"unit" validate:"required,oneof=kg g liter ml piece dozen packet box bag"`
	MinOrderQuantity int           `json:"minOrderQuantity" validate:"omitempty,gte=1"`
	Location         *geo.Location `json:"location" validate:"omitempty"`
	IsAvailable      *bool         `json:"isAvailable"`
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Material, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, apperr.Validation("validation failed", map[string]string{"category": "invalid category"})
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

func (s *Service) Get(ctx context.Context, id int) (Material, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Material{}, notFound(id, err)
	}
	return m, nil
}

// GetMany returns the materials for ids that still exist.
func (s *Service) GetMany(ctx context.Context, ids []int) (map[int]Material, error) {
	return s.repo.GetByIDs(ctx, ids)
}

func (s *Service) Create(ctx context.Context, supplierID int, in Input) (Material, error) {
	if err := apperr.ValidateStruct(in); err != nil {
		return Material{}, err
	}

	supplier, err := s.suppliers.GetByID(ctx, supplierID)
	if err != nil {
		return Material{}, err
	}
	if !supplier.IsSupplier() {
		return Material{}, apperr.Forbidden("only suppliers can list materials")
	}

	now := s.now().UTC()
	m := Material{
		SupplierID:  supplierID,
		Location:    supplier.Location,
		IsAvailable: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	applyInput(&m, in)

	created, err := s.repo.Create(ctx, m)
	if err != nil {
		return Material{}, err
	}
	metrics.RecordStock(created.ID, created.Quantity)
	return created, nil
}

func (s *Service) Update(ctx context.Context, supplierID, id int, in Input) (Material, error) {
	if err := apperr.ValidateStruct(in); err != nil {
		return Material{}, err
	}

	existing, err := s.owned(ctx, supplierID, id)
	if err != nil {
		return Material{}, err
	}

	applyInput(&existing, in)
	existing.UpdatedAt = s.now().UTC()

	updated, err := s.repo.Update(ctx, id, existing)
	if err != nil {
		return Material{}, notFound(id, err)
	}
	metrics.RecordStock(updated.ID, updated.Quantity)
	return updated, nil
}

func (s *Service) SetAvailability(ctx context.Context, supplierID, id int, available bool) (Material, error) {
	if _, err := s.owned(ctx, supplierID, id); err != nil {
		return Material{}, err
	}

	m, err := s.repo.SetAvailability(ctx, id, available)
	if err != nil {
		return Material{}, notFound(id, err)
	}
	return m, nil
}

func (s *Service) Delete(ctx context.Context, supplierID, id int) error {
	if _, err := s.owned(ctx, supplierID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(id, err)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, supplierID, id int) (Material, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Material{}, notFound(id, err)
	}
	if m.SupplierID != supplierID {
		return Material{}, apperr.Forbidden("you can only manage your own materials")
	}
	return m, nil
}

func applyInput(m *Material, in Input) {
	m.Name = strings.TrimSpace(in.Name)
	m.Description = strings.TrimSpace(in.Description)
	m.Category = in.Category
	m.Price = money.Round(*in.Price)
	m.Quantity = *in.Quantity
	m.Unit = in.Unit
	m.MinOrderQuantity = in.MinOrderQuantity
	if m.MinOrderQuantity == 0 {
		m.MinOrderQuantity = 1
	}
	if in.Location != nil {
		m.Location = *in.Location
	}
	if in.IsAvailable != nil {
		m.IsAvailable = *in.IsAvailable
	}
}

func notFound(id int, err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, fmt.Sprintf("material %d not found", id), err)
	}
	return err
}
