// Package delivery provides the geocoding and ride-estimate collaborators
// used to price the store-to-address delivery of a diet.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
	"github.com/alchemorsel/dietgen/internal/domain/profile"
	"github.com/alchemorsel/dietgen/internal/infrastructure/config"
	"github.com/alchemorsel/dietgen/internal/infrastructure/httpclient"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	"go.uber.org/zap"
)

var (
	ErrNoCoordinates = errors.New("address could not be geocoded")
	ErrNoQuote       = errors.New("ride estimator returned no quote")
)

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle distance between two points.
func DistanceKm(a, b outbound.Coordinates) float64 {
	lat1, lat2 := a.Latitude*math.Pi/180, b.Latitude*math.Pi/180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// FormatAddress renders an address as a single geocoder query line.
func FormatAddress(a profile.Address) string {
	var parts []string
	street := strings.TrimSpace(strings.TrimSpace(a.Street) + " " + strings.TrimSpace(a.Number))
	for _, p := range []string{street, a.Neighborhood, a.City, a.State, a.ZipCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// AddressGeocoder uses coordinates already on the address and falls back
// to next, which may be nil.
type AddressGeocoder struct {
	next outbound.Geocoder
}

var _ outbound.Geocoder = (*AddressGeocoder)(nil)

// NewAddressGeocoder creates a geocoder that prefers stored coordinates.
func NewAddressGeocoder(next outbound.Geocoder) *AddressGeocoder {
	return &AddressGeocoder{next: next}
}

func (g *AddressGeocoder) Geocode(ctx context.Context, addr profile.Address) (outbound.Coordinates, error) {
	if addr.Latitude != 0 || addr.Longitude != 0 {
		return outbound.Coordinates{Latitude: addr.Latitude, Longitude: addr.Longitude}, nil
	}
	if g.next == nil {
		return outbound.Coordinates{}, ErrNoCoordinates
	}
	return g.next.Geocode(ctx, addr)
}

// HTTPGeocoder queries a forward-geocoding endpoint:
// GET {base}?q=<address>&key=<key> returning {"results":[{"lat":..,"lng":..}]}.
type HTTPGeocoder struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

var _ outbound.Geocoder = (*HTTPGeocoder)(nil)

// NewHTTPGeocoder creates a geocoder client
func NewHTTPGeocoder(baseURL, apiKey string, client *http.Client, logger *zap.Logger) *HTTPGeocoder {
	if client == nil {
		client = httpclient.New(0)
	}
	return &HTTPGeocoder{baseURL: baseURL, apiKey: apiKey, http: client, logger: logger.Named("geocoder")}
}

type geocodeResponse struct {
	Results []struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"results"`
}

func (g *HTTPGeocoder) Geocode(ctx context.Context, addr profile.Address) (outbound.Coordinates, error) {
	q := url.Values{}
	q.Set("q", FormatAddress(addr))
	if g.apiKey != "" {
		q.Set("key", g.apiKey)
	}

	var resp geocodeResponse
	if err := httpclient.Do(ctx, g.http, http.MethodGet, "geocoder", g.baseURL+"?"+q.Encode(), nil, nil, &resp); err != nil {
		return outbound.Coordinates{}, err
	}
	if len(resp.Results) == 0 {
		return outbound.Coordinates{}, fmt.Errorf("%w: %s", ErrNoCoordinates, addr.City)
	}
	g.logger.Debug("Address geocoded", zap.String("city", addr.City))
	return outbound.Coordinates{Latitude: resp.Results[0].Lat, Longitude: resp.Results[0].Lng}, nil
}

// HTTPRideEstimator asks a ride service for a quote:
// POST {base}/estimates with the two points, returning distance and price.
type HTTPRideEstimator struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

var _ outbound.RideEstimator = (*HTTPRideEstimator)(nil)

// NewHTTPRideEstimator creates a ride estimate client
func NewHTTPRideEstimator(baseURL, apiKey string, client *http.Client, logger *zap.Logger) *HTTPRideEstimator {
	if client == nil {
		client = httpclient.New(0)
	}
	return &HTTPRideEstimator{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: client, logger: logger.Named("ride-estimator")}
}

type point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type estimateRequest struct {
	Pickup  point `json:"pickup"`
	Dropoff point `json:"dropoff"`
}

type estimateResponse struct {
	Estimates []struct {
		Product    string  `json:"product"`
		DistanceKm float64 `json:"distanceKm"`
		Price      float64 `json:"price"`
	} `json:"estimates"`
}

// Estimate returns the cheapest quote.
func (e *HTTPRideEstimator) Estimate(ctx context.Context, from, to outbound.Coordinates) (diet.Delivery, error) {
	body := estimateRequest{
		Pickup:  point{Lat: from.Latitude, Lng: from.Longitude},
		Dropoff: point{Lat: to.Latitude, Lng: to.Longitude},
	}
	headers := map[string]string{}
	if e.apiKey != "" {
		headers["Authorization"] = "Bearer " + e.apiKey
	}

	var resp estimateResponse
	if err := httpclient.PostJSON(ctx, e.http, "ride-estimator", e.baseURL+"/estimates", headers, body, &resp); err != nil {
		return diet.Delivery{}, err
	}
	if len(resp.Estimates) == 0 {
		return diet.Delivery{}, ErrNoQuote
	}
	best := resp.Estimates[0]
	for _, q := range resp.Estimates[1:] {
		if q.Price < best.Price {
			best = q
		}
	}
	e.logger.Debug("Ride estimated", zap.String("product", best.Product), zap.Float64("price", best.Price))
	return diet.Delivery{
		DistanceKm: nutrition.Round2(best.DistanceKm),
		Price:      nutrition.Round2(best.Price),
		Provider:   best.Product,
	}, nil
}

// FlatRateEstimator quotes a fixed fee using the straight-line distance.
type FlatRateEstimator struct {
	Fee float64
}

var _ outbound.RideEstimator = FlatRateEstimator{}

func (f FlatRateEstimator) Estimate(_ context.Context, from, to outbound.Coordinates) (diet.Delivery, error) {
	return diet.Delivery{
		DistanceKm: nutrition.Round2(DistanceKm(from, to)),
		Price:      nutrition.Round2(f.Fee),
		Provider:   "flat",
	}, nil
}

// Collaborators wires the configured geocoder and estimator. Both are nil
// when delivery is disabled.
func Collaborators(cfg config.DeliveryConfig, client *http.Client, logger *zap.Logger) (outbound.Geocoder, outbound.RideEstimator, outbound.Coordinates) {
	store := outbound.Coordinates{Latitude: cfg.StoreLatitude, Longitude: cfg.StoreLongitude}
	if !cfg.Enabled {
		return nil, nil, store
	}

	var remote outbound.Geocoder
	if cfg.GeocoderURL != "" {
		remote = NewHTTPGeocoder(cfg.GeocoderURL, cfg.GeocoderKey, client, logger)
	}
	var rides outbound.RideEstimator = FlatRateEstimator{Fee: cfg.FlatFee}
	if cfg.RideURL != "" {
		rides = NewHTTPRideEstimator(cfg.RideURL, cfg.RideKey, client, logger)
	}
	return NewAddressGeocoder(remote), rides, store
}
