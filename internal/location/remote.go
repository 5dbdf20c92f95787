package location

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const remoteTimeout = 5 * time.Second

// RemoteGeocoder queries a Nominatim-compatible /search endpoint through a
// circuit breaker and answers from fallback when the call fails or the
// circuit is open.
type RemoteGeocoder struct {
	client   *resty.Client
	breaker  *gobreaker.CircuitBreaker
	fallback Geocoder
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func NewRemoteGeocoder(baseURL string, fallback Geocoder) *RemoteGeocoder {
	return &RemoteGeocoder{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(remoteTimeout).
			SetRetryCount(0).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "vendor-supply-backend"),
		breaker:  newCircuitBreaker("geocoder", answered),
		fallback: fallback,
	}
}

// answered treats a well-formed "no such place" reply as a healthy call.
func answered(err error) bool {
	return err == nil || errors.Is(err, ErrUnknownCity)
}

func (g *RemoteGeocoder) Geocode(ctx context.Context, city string) (Result, error) {
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.search(ctx, city)
	})
	if err == nil {
		return res.(Result), nil
	}
	if g.fallback == nil {
		return Result{}, err
	}

	if !errors.Is(err, ErrUnknownCity) {
		log.WithFields(log.Fields{
			"city":    city,
			"circuit": g.breaker.State().String(),
		}).WithError(err).Warn("Remote geocoder failed, using fallback")
	}
	return g.fallback.Geocode(ctx, city)
}

// Cities lists the fallback's fixed cities, if it has any.
func (g *RemoteGeocoder) Cities() []Result {
	if l, ok := g.fallback.(CityLister); ok {
		return l.Cities()
	}
	return []Result{}
}

func (g *RemoteGeocoder) search(ctx context.Context, city string) (Result, error) {
	var places []nominatimPlace
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":            city + ", India",
			"format":       "json",
			"limit":        "1",
			"countrycodes": "in",
		}).
		SetResult(&places).
		Get("/search")
	if err != nil {
		return Result{}, fmt.Errorf("geocode %s: %w", city, err)
	}
	if resp.IsError() {
		return Result{}, fmt.Errorf("geocode %s: status %d", city, resp.StatusCode())
	}
	if len(places) == 0 {
		return Result{}, ErrUnknownCity
	}

	p := places[0]
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return Result{}, fmt.Errorf("geocode %s: bad latitude %q", city, p.Lat)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return Result{}, fmt.Errorf("geocode %s: bad longitude %q", city, p.Lon)
	}

	r := Result{City: strings.TrimSpace(city), Latitude: lat, Longitude: lng, Source: "remote"}
	// display_name ends with "..., <state>, <postcode?>, India"
	parts := strings.Split(p.DisplayName, ",")
	if len(parts) > 0 {
		r.City = strings.TrimSpace(parts[0])
	}
	for i := len(parts) - 2; i > 0; i-- {
		s := strings.TrimSpace(parts[i])
		if _, err := strconv.Atoi(s); err != nil {
			r.State = s
			break
		}
	}
	return r, nil
}
