package openmeteo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

// DefaultGeocodingURL is the public place-name search endpoint.
const DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"

// Geocoder resolves place names through the Open-Meteo geocoding API.
type Geocoder struct {
	baseURL   string
	transport ports.Transport
	logger    *zap.Logger
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Name      string   `json:"name"`
	Country   string   `json:"country"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// NewGeocoder creates a geocoding client.
func NewGeocoder(baseURL string, transport ports.Transport, logger *zap.Logger) *Geocoder {
	if baseURL == "" {
		baseURL = DefaultGeocodingURL
	}

	return &Geocoder{
		baseURL:   baseURL,
		transport: transport,
		logger:    logger,
	}
}

// Resolve looks up the best match for location.
//
// Parameters:
//   - ctx: Context for cancellation
//   - location: Free-text place name
//
// Returns:
//   - domain.GeoPoint: Coordinates labelled "name, country"
//   - error: GEOCODING_FAILED when the call fails, LOCATION_NOT_FOUND when nothing usable matched
func (g *Geocoder) Resolve(ctx context.Context, location string) (domain.GeoPoint, error) {
	name := strings.TrimSpace(location)
	requestURL := fmt.Sprintf("%s?name=%s&count=1", g.baseURL, url.QueryEscape(name))

	resp, err := g.transport.Get(ctx, requestURL, nil)

	if err != nil {
		return domain.GeoPoint{}, geocodingFailed(err)
	}

	if !resp.OK() {
		return domain.GeoPoint{}, geocodingFailed(fmt.Errorf("status %d", resp.StatusCode))
	}

	var payload searchResponse

	if err := resp.DecodeJSON(&payload); err != nil {
		return domain.GeoPoint{}, geocodingFailed(err)
	}

	if len(payload.Results) == 0 {
		g.logger.Debug("geocoding returned no results", zap.String("location", name))
		return domain.GeoPoint{}, notFound(nil)
	}

	first := payload.Results[0]

	if first.Latitude == nil || first.Longitude == nil {
		return domain.GeoPoint{}, notFound(nil)
	}

	label := first.Name
	if label == "" {
		label = name
	}

	if first.Country != "" {
		label += ", " + first.Country
	}

	return domain.GeoPoint{
		Coordinates: domain.Coordinates{Latitude: *first.Latitude, Longitude: *first.Longitude},
		Label:       label,
	}, nil
}

func geocodingFailed(cause error) error {
	return &domain.WeatherError{
		Code:    domain.CodeGeocodingFailed,
		Message: "Geocoding request failed",
		Cause:   cause,
	}
}

func notFound(cause error) error {
	return &domain.WeatherError{
		Code:    domain.CodeLocationNotFound,
		Message: "Location was not found",
		Cause:   cause,
	}
}
