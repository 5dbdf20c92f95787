package supplier

import (
	"context"
	"fmt"
	"sort"

	"github.com/wichananm65/vendor-supply-backend/internal/apperr"
	"github.com/wichananm65/vendor-supply-backend/internal/geo"
	"github.com/wichananm65/vendor-supply-backend/internal/material"
	"github.com/wichananm65/vendor-supply-backend/internal/user"
)

const (
	maxRadiusKm = 500

	// profilePageSize matches the largest page the material catalog serves.
	profilePageSize = 100
)

// Directory is the part of the user service that knows suppliers.
type Directory interface {
	ListSuppliers(ctx context.Context, filter user.SupplierFilter) ([]user.User, error)
	GetSupplier(ctx context.Context, id int) (user.User, error)
}

type Catalog interface {
	List(ctx context.Context, filter material.Filter) ([]material.Material, error)
}

// Nearby is a supplier annotated with its distance from the search point.
type Nearby struct {
	user.User
	Distance     float64 `json:"distance"`
	DeliveryFee  float64 `json:"deliveryFee"`
	DeliveryTime string  `json:"deliveryTime"`
}

type Profile struct {
	Supplier  user.User           `json:"supplier"`
	Materials []material.Material `json:"materials"`
}

type Estimate struct {
	SupplierID   int     `json:"supplierId"`
	Distance     float64 `json:"distance"`
	DeliveryFee  float64 `json:"deliveryFee"`
	DeliveryTime string  `json:"deliveryTime"`
}

type Service struct {
	directory Directory
	catalog   Catalog
}

func NewService(directory Directory, catalog Catalog) *Service {
	return &Service{directory: directory, catalog: catalog}
}

func (s *Service) List(ctx context.Context, city string) ([]user.User, error) {
	return s.directory.ListSuppliers(ctx, user.SupplierFilter{City: city})
}

// Nearby finds suppliers within radiusKm of center, closest first. The
// bounding box narrows the candidates and the great-circle distance decides.
func (s *Service) Nearby(ctx context.Context, center geo.Point, radiusKm float64) ([]Nearby, error) {
	if !center.Valid() {
		return nil, apperr.Validation("validation failed", map[string]string{"latitude": "coordinates are out of range"})
	}
	if radiusKm <= 0 {
		radiusKm = geo.DefaultRadiusKm
	}
	if radiusKm > maxRadiusKm {
		return nil, apperr.Validation("validation failed", map[string]string{
			"radius": fmt.Sprintf("radius must be at most %d km", maxRadiusKm),
		})
	}

	box := geo.BoundingBox(center, radiusKm)
	candidates, err := s.directory.ListSuppliers(ctx, user.SupplierFilter{Box: &box})
	if err != nil {
		return nil, err
	}

	out := make([]Nearby, 0, len(candidates))
	for _, u := range candidates {
		if !u.Location.HasCoordinates() {
			continue
		}
		km := geo.Haversine(center, u.Location.Point())
		if km > radiusKm {
			continue
		}
		out = append(out, Nearby{
			User:         u,
			Distance:     geo.RoundKm(km),
			DeliveryFee:  geo.DeliveryFee(km),
			DeliveryTime: geo.DeliveryTime(km),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// Profile returns a supplier with every material they currently offer,
// reading the catalog page by page.
func (s *Service) Profile(ctx context.Context, id int) (Profile, error) {
	sup, err := s.directory.GetSupplier(ctx, id)
	if err != nil {
		return Profile{}, err
	}

	available := true
	materials := []material.Material{}
	for page := 1; ; page++ {
		batch, err := s.catalog.List(ctx, material.Filter{
			SupplierID: id,
			Available:  &available,
			Page:       page,
			Limit:      profilePageSize,
		})
		if err != nil {
			return Profile{}, err
		}
		materials = append(materials, batch...)
		if len(batch) < profilePageSize {
			break
		}
	}
	return Profile{Supplier: sup, Materials: materials}, nil
}

func (s *Service) DeliveryEstimate(ctx context.Context, id int, to geo.Point) (Estimate, error) {
	sup, err := s.directory.GetSupplier(ctx, id)
	if err != nil {
		return Estimate{}, err
	}
	if !sup.Location.HasCoordinates() {
		return Estimate{}, apperr.Validation("supplier has no location on file", nil)
	}

	km := geo.Haversine(sup.Location.Point(), to)
	return Estimate{
		SupplierID:   id,
		Distance:     geo.RoundKm(km),
		DeliveryFee:  geo.DeliveryFee(km),
		DeliveryTime: geo.DeliveryTime(km),
	}, nil
}
