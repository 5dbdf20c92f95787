package location

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/wichananm65/vendor-supply-backend/internal/geo"
)

var ErrUnknownCity = errors.New("city not found")

// Result is a geocoded city.
type Result struct {
	City      string  `json:"city"`
	State     string  `json:"state"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Source    string  `json:"source"`
}

func (r Result) Point() geo.Point {
	return geo.Point{Lat: r.Latitude, Lng: r.Longitude}
}

type Geocoder interface {
	Geocode(ctx context.Context, city string) (Result, error)
}

// StaticGeocoder answers from a fixed table of major Indian cities.
type StaticGeocoder struct {
	cities map[string]Result
}

var indianCities = []Result{
	{City: "Mumbai", State: "Maharashtra", Latitude: 19.0760, Longitude: 72.8777},
	{City: "Delhi", State: "Delhi", Latitude: 28.7041, Longitude: 77.1025},
	{City: "Bengaluru", State: "Karnataka", Latitude: 12.9716, Longitude: 77.5946},
	{City: "Hyderabad", State: "Telangana", Latitude: 17.3850, Longitude: 78.4867},
	{City: "Chennai", State: "Tamil Nadu", Latitude: 13.0827, Longitude: 80.2707},
	{City: "Kolkata", State: "West Bengal", Latitude: 22.5726, Longitude: 88.3639},
	{City: "Pune", State: "Maharashtra", Latitude: 18.5204, Longitude: 73.8567},
	{City: "Ahmedabad", State: "Gujarat", Latitude: 23.0225, Longitude: 72.5714},
	{City: "Jaipur", State: "Rajasthan", Latitude: 26.9124, Longitude: 75.7873},
	{City: "Surat", State: "Gujarat", Latitude: 21.1702, Longitude: 72.8311},
	{City: "Lucknow", State: "Uttar Pradesh", Latitude: 26.8467, Longitude: 80.9462},
	{City: "Kanpur", State: "Uttar Pradesh", Latitude: 26.4499, Longitude: 80.3319},
	{City: "Nagpur", State: "Maharashtra", Latitude: 21.1458, Longitude: 79.0882},
	{City: "Indore", State: "Madhya Pradesh", Latitude: 22.7196, Longitude: 75.8577},
	{City: "Bhopal", State: "Madhya Pradesh", Latitude: 23.2599, Longitude: 77.4126},
	{City: "Patna", State: "Bihar", Latitude: 25.5941, Longitude: 85.1376},
	{City: "Vadodara", State: "Gujarat", Latitude: 22.3072, Longitude: 73.1812},
	{City: "Chandigarh", State: "Chandigarh", Latitude: 30.7333, Longitude: 76.7794},
	{City: "Kochi", State: "Kerala", Latitude: 9.9312, Longitude: 76.2673},
	{City: "Coimbatore", State: "Tamil Nadu", Latitude: 11.0168, Longitude: 76.9558},
}

// aliases maps older or alternate spellings onto the table.
var aliases = map[string]string{
	"bangalore": "bengaluru",
	"bombay":    "mumbai",
	"new delhi": "delhi",
	"calcutta":  "kolkata",
	"madras":    "chennai",
	"cochin":    "kochi",
}

func NewStaticGeocoder() *StaticGeocoder {
	g := &StaticGeocoder{cities: make(map[string]Result, len(indianCities))}
	for _, c := range indianCities {
		c.Source = "static"
		g.cities[strings.ToLower(c.City)] = c
	}
	return g
}

func (g *StaticGeocoder) Geocode(_ context.Context, city string) (Result, error) {
	key := strings.ToLower(strings.TrimSpace(city))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	r, ok := g.cities[key]
	if !ok {
		return Result{}, ErrUnknownCity
	}
	return r, nil
}

// CityLister is implemented by geocoders that know a fixed set of cities.
type CityLister interface {
	Cities() []Result
}

// Cities lists the table sorted by name.
func (g *StaticGeocoder) Cities() []Result {
	out := make([]Result, 0, len(g.cities))
	for _, c := range g.cities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].City < out[j].City })
	return out
}
