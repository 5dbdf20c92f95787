package geo

import (
	"math"
	"regexp"
)

const (
	// EarthRadiusKm is the mean Earth radius used for all great-circle distances.
	EarthRadiusKm = 6371.0

	// DefaultRadiusKm is the search radius used when a nearby query omits one.
	DefaultRadiusKm = 25.0
)

var pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Valid reports whether the point lies within the WGS84 coordinate range.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// IsZero reports whether the point is the unset (0,0) value.
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// Haversine returns the great-circle distance between a and b in kilometers.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push h a hair past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// Box is a lat/lng bounding rectangle used to pre-filter candidates before
// the exact Haversine check.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Contains reports whether p falls inside the box.
func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// BoundingBox converts a radius in km into an angular box around center.
// The radius is first turned into radians of arc (radius / R); near the poles
// the longitude span is widened to the full range.
func BoundingBox(center Point, radiusKm float64) Box {
	angular := radiusKm / EarthRadiusKm
	latRad := center.Lat * math.Pi / 180

	minLat := latRad - angular
	maxLat := latRad + angular

	var minLng, maxLng float64
	if minLat > -math.Pi/2 && maxLat < math.Pi/2 {
		deltaLng := math.Asin(math.Sin(angular) / math.Cos(latRad))
		lngRad := center.Lng * math.Pi / 180
		minLng = lngRad - deltaLng
		maxLng = lngRad + deltaLng
	} else {
		minLat = math.Max(minLat, -math.Pi/2)
		maxLat = math.Min(maxLat, math.Pi/2)
		minLng = -math.Pi
		maxLng = math.Pi
	}

	return Box{
		MinLat: minLat * 180 / math.Pi,
		MaxLat: maxLat * 180 / math.Pi,
		MinLng: minLng * 180 / math.Pi,
		MaxLng: maxLng * 180 / math.Pi,
	}
}

// DeliveryFee maps a distance in km to the flat fee bucket.
func DeliveryFee(distanceKm float64) float64 {
	switch {
	case distanceKm <= 5:
		return 0
	case distanceKm <= 15:
		return 50
	case distanceKm <= 30:
		return 100
	default:
		return 150
	}
}

// DeliveryTime maps a distance in km to a human readable delivery window.
func DeliveryTime(distanceKm float64) string {
	switch {
	case distanceKm <= 5:
		return "Same day"
	case distanceKm <= 15:
		return "Next day"
	case distanceKm <= 30:
		return "1-2 days"
	case distanceKm <= 50:
		return "2-3 days"
	default:
		return "3-5 days"
	}
}

// ValidPincode reports whether s is a six digit Indian postal code.
func ValidPincode(s string) bool {
	return pincodePattern.MatchString(s)
}

// RoundKm rounds a distance to two decimals for API responses.
func RoundKm(km float64) float64 {
	return math.Round(km*100) / 100
}

// Location is a postal location with optional coordinates.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
	City      string  `json:"city,omitempty"`
	State     string  `json:"state,omitempty"`
	Pincode   string  `json:"pincode,omitempty" validate:"omitempty,pincode"`
}

func (l Location) Point() Point {
	return Point{Lat: l.Latitude, Lng: l.Longitude}
}

// HasCoordinates reports whether the location carries a usable position.
func (l Location) HasCoordinates() bool {
	p := l.Point()
	return !p.IsZero() && p.Valid()
}
