package council

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/kalambet/propeval/internal/providers"
)

const (
	googleProvider       = "google_geocode"
	defaultGeocodeURL    = "https://maps.googleapis.com/maps/api/geocode/json"
	geocodeCountrySuffix = ", New Zealand"
)

// GoogleGeocoder resolves addresses with the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{
		apiKey:     apiKey,
		endpoint:   defaultGeocodeURL,
		httpClient: &http.Client{Timeout: providers.DefaultTimeout},
	}
}

// NewGoogleGeocoderWithURL points the geocoder at a custom endpoint (for testing).
func NewGoogleGeocoderWithURL(apiKey, endpoint string) *GoogleGeocoder {
	g := NewGoogleGeocoder(apiKey)
	g.endpoint = endpoint
	return g
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (float64, float64, error) {
	if g.apiKey == "" {
		return 0, 0, providers.NewProviderError(providers.CategoryNotConfigured, googleProvider, "no API key", providers.ErrNotConfigured)
	}

	params := url.Values{}
	params.Set("address", address+geocodeCountrySuffix)
	params.Set("key", g.apiKey)
	body, err := providers.Do(ctx, g.httpClient, googleProvider, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	})
	if err != nil {
		return 0, 0, err
	}

	status, _ := jsonparser.GetString(body, "status")
	if status != "OK" {
		cat := providers.CategoryBadData
		if status == "ZERO_RESULTS" {
			cat = providers.CategoryNotFound
		}
		return 0, 0, providers.NewProviderError(cat, googleProvider, "geocode status "+status, nil)
	}
	lat, err := jsonparser.GetFloat(body, "results", "[0]", "geometry", "location", "lat")
	if err != nil {
		return 0, 0, providers.NewProviderError(providers.CategoryBadData, googleProvider, "missing lat", err)
	}
	lng, err := jsonparser.GetFloat(body, "results", "[0]", "geometry", "location", "lng")
	if err != nil {
		return 0, 0, providers.NewProviderError(providers.CategoryBadData, googleProvider, "missing lng", err)
	}
	return lat, lng, nil
}

// ParseLatLng reads a "lat,lng" pair such as "-36.8485,174.7633".
func ParseLatLng(s string) (float64, float64, bool) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// Coordinates prefers the listing's own location string and geocodes the
// joined address parts otherwise. geocoder may be nil.
func Coordinates(ctx context.Context, geocoder providers.Geocoder, q providers.ZoningQuery) (float64, float64, error) {
	if lat, lng, ok := ParseLatLng(q.GeographicLocation); ok {
		return lat, lng, nil
	}
	var parts []string
	for _, p := range []string{q.FullAddress, q.Address, q.Suburb, q.District} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return 0, 0, fmt.Errorf("no address to geocode")
	}
	if geocoder == nil {
		return 0, 0, providers.ErrNotConfigured
	}
	return geocoder.Geocode(ctx, strings.Join(parts, ", "))
}
