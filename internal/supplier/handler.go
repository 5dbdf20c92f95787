package supplier

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/vendor-supply-backend/internal/apperr"
	"github.com/wichananm65/vendor-supply-backend/internal/geo"
	"github.com/wichananm65/vendor-supply-backend/internal/location"
)

type Handler struct {
	service  *Service
	geocoder location.Geocoder
}

// NewHandler builds the supplier routes. geocoder resolves ?city= on the
// nearby search and may be nil.
func NewHandler(service *Service, geocoder location.Geocoder) *Handler {
	return &Handler{service: service, geocoder: geocoder}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Get("/api/v1/suppliers", h.getSuppliers)
	app.Get("/api/v1/suppliers/nearby", h.getNearby)
	app.Get("/api/v1/suppliers/:id<int>", h.getSupplier)
	app.Get("/api/v1/suppliers/:id<int>/delivery-estimate", h.getDeliveryEstimate)
}

func (h *Handler) getSuppliers(c *fiber.Ctx) error {
	suppliers, err := h.service.List(c.UserContext(), strings.TrimSpace(c.Query("city")))
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(suppliers)
}

func (h *Handler) getNearby(c *fiber.Ctx) error {
	center, err := h.center(c)
	if err != nil {
		return apperr.Write(c, err)
	}

	radius := geo.DefaultRadiusKm
	if v := c.Query("radius"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r <= 0 {
			return apperr.Write(c, apperr.Validation("validation failed", map[string]string{"radius": "radius must be a positive number"}))
		}
		radius = r
	}

	suppliers, err := h.service.Nearby(c.UserContext(), center, radius)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(fiber.Map{
		"center":    center,
		"radius":    radius,
		"count":     len(suppliers),
		"suppliers": suppliers,
	})
}

// center reads latitude/longitude, or geocodes ?city= when no coordinates
// were sent.
func (h *Handler) center(c *fiber.Ctx) (geo.Point, error) {
	city := strings.TrimSpace(c.Query("city"))
	if c.Query("latitude") == "" && c.Query("longitude") == "" && city != "" && h.geocoder != nil {
		res, err := h.geocoder.Geocode(c.UserContext(), city)
		if errors.Is(err, location.ErrUnknownCity) {
			return geo.Point{}, apperr.Wrap(apperr.KindNotFound, "could not locate "+city, err)
		}
		if err != nil {
			return geo.Point{}, err
		}
		return res.Point(), nil
	}

	p, errs := location.PointFromQuery(c, "latitude", "longitude")
	if len(errs) > 0 {
		return geo.Point{}, apperr.Validation("validation failed", errs)
	}
	return p, nil
}

func (h *Handler) getSupplier(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid id"})
	}

	profile, err := h.service.Profile(c.UserContext(), id)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(profile)
}

func (h *Handler) getDeliveryEstimate(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid id"})
	}
	to, errs := location.PointFromQuery(c, "latitude", "longitude")
	if len(errs) > 0 {
		return apperr.Write(c, apperr.Validation("validation failed", errs))
	}

	estimate, err := h.service.DeliveryEstimate(c.UserContext(), id, to)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(estimate)
}
