package location

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/vendor-supply-backend/internal/apperr"
	"github.com/wichananm65/vendor-supply-backend/internal/geo"
)

type Handler struct {
	geocoder Geocoder
}

func NewHandler(geocoder Geocoder) *Handler {
	return &Handler{geocoder: geocoder}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Get("/api/v1/location/cities", h.cities)
	app.Get("/api/v1/location/geocode", h.geocode)
	app.Get("/api/v1/location/pincode/:pincode", h.validatePincode)
	app.Get("/api/v1/location/distance", h.distance)
}

func (h *Handler) geocode(c *fiber.Ctx) error {
	city := strings.TrimSpace(c.Query("city"))
	if city == "" {
		return apperr.Write(c, apperr.Validation("validation failed", map[string]string{"city": "city is required"}))
	}

	res, err := h.geocoder.Geocode(c.UserContext(), city)
	if errors.Is(err, ErrUnknownCity) {
		return apperr.Write(c, apperr.Wrap(apperr.KindNotFound, "could not locate "+city, err))
	}
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(res)
}

// cities lists the cities the geocoder can always resolve.
func (h *Handler) cities(c *fiber.Ctx) error {
	list := []Result{}
	if l, ok := h.geocoder.(CityLister); ok {
		list = l.Cities()
	}
	return c.JSON(fiber.Map{"count": len(list), "cities": list})
}

func (h *Handler) validatePincode(c *fiber.Ctx) error {
	pincode := c.Params("pincode")
	return c.JSON(fiber.Map{
		"pincode": pincode,
		"valid":   geo.ValidPincode(pincode),
	})
}

func (h *Handler) distance(c *fiber.Ctx) error {
	from, fromErrs := PointFromQuery(c, "fromLat", "fromLng")
	to, toErrs := PointFromQuery(c, "toLat", "toLng")
	for k, v := range toErrs {
		fromErrs[k] = v
	}
	if len(fromErrs) > 0 {
		return apperr.Write(c, apperr.Validation("validation failed", fromErrs))
	}

	km := geo.Haversine(from, to)
	return c.JSON(fiber.Map{
		"distance":     geo.RoundKm(km),
		"deliveryFee":  geo.DeliveryFee(km),
		"deliveryTime": geo.DeliveryTime(km),
	})
}

// PointFromQuery reads a latitude/longitude pair from the query string. The
// returned map holds a message per missing or out-of-range parameter.
func PointFromQuery(c *fiber.Ctx, latKey, lngKey string) (geo.Point, map[string]string) {
	errs := map[string]string{}
	lat := coordinate(c.Query(latKey), latKey, 90, errs)
	lng := coordinate(c.Query(lngKey), lngKey, 180, errs)
	return geo.Point{Lat: lat, Lng: lng}, errs
}

// coordinate parses a finite value within [-limit, limit].
func coordinate(raw, key string, limit float64, errs map[string]string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		errs[key] = key + " must be a number"
		return 0
	}
	if v < -limit || v > limit {
		errs[key] = fmt.Sprintf("%s must be between %g and %g", key, -limit, limit)
	}
	return v
}
