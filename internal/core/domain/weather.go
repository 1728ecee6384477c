// Package domain contains the core entities shared by the location parser, the
// provider adapters and the weather store. Nothing in here performs I/O.
package domain

import (
	"fmt"
	"time"
)

// Provider identifies one of the two interchangeable weather data sources.
// The key space is closed: only the constants below are valid.
type Provider string

const (
	// ProviderOpenWeather is backed by the Open-Meteo forecast API.
	ProviderOpenWeather Provider = "openWeather"

	// ProviderWeatherAPI is backed by the Met.no locationforecast API.
	ProviderWeatherAPI Provider = "weatherApi"
)

// DefaultProvider is selected when a store session starts.
const DefaultProvider = ProviderOpenWeather

// Providers lists every provider in display order.
func Providers() []Provider {
	return []Provider{ProviderOpenWeather, ProviderWeatherAPI}
}

// Valid reports whether p is one of the enumerated providers.
func (p Provider) Valid() bool {
	return p == ProviderOpenWeather || p == ProviderWeatherAPI
}

// Label returns the human-readable provider name used in error messages.
func (p Provider) Label() string {
	switch p {
	case ProviderOpenWeather:
		return "OpenWeather"
	case ProviderWeatherAPI:
		return "Met.no"
	default:
		return string(p)
	}
}

// ParseProvider converts a raw key into a Provider.
//
// Parameters:
//   - raw: Provider key such as "openWeather" or "weatherApi"
//
// Returns:
//   - Provider: Parsed provider
//   - error: Returned when the key is not one of the enumerated providers
func ParseProvider(raw string) (Provider, error) {
	p := Provider(raw)

	if !p.Valid() {
		return "", fmt.Errorf("unknown weather provider %q", raw)
	}

	return p, nil
}

// Coordinates represent a geographic location using latitude and longitude.
type Coordinates struct {
	// Latitude specifies the north-south position (-90 to 90 degrees)
	Latitude float64 `json:"latitude"`

	// Longitude specifies the east-west position (-180 to 180 degrees)
	Longitude float64 `json:"longitude"`
}

// Validate checks if the coordinates are within valid geographic bounds.
func (c Coordinates) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %f", c.Latitude)
	}

	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %f", c.Longitude)
	}

	return nil
}

// GeoPoint is a resolved location: coordinates plus the label shown to the user.
// It lives for a single request only.
type GeoPoint struct {
	Coordinates
	Label string `json:"label"`
}

// RequestPolicy bounds how long the store waits for a provider and how many
// extra attempts it makes. It is fixed when a service is constructed.
type RequestPolicy struct {
	Timeout time.Duration `json:"timeout"`
	Retries int           `json:"retries"`
}

// Attempts returns the total number of calls the policy allows.
func (p RequestPolicy) Attempts() int {
	if p.Retries < 0 {
		return 1
	}

	return p.Retries + 1
}

// TimeoutMessage is the failure text used when an attempt outlives the policy timeout.
func (p RequestPolicy) TimeoutMessage() string {
	return fmt.Sprintf("Weather request timeout (%dms)", p.Timeout.Milliseconds())
}

// WeatherRecord is the canonical current-conditions result every provider
// adapter produces. Values are in the provider's native units. A record is
// never modified after it has been built.
type WeatherRecord struct {
	Temperature   float64  `json:"temperature"`
	Humidity      float64  `json:"humidity"`
	WindSpeed     float64  `json:"windSpeed"`
	Description   string   `json:"description"`
	ObservedAt    string   `json:"dateTime"`
	LocationLabel string   `json:"locationLabel"`
	Provider      Provider `json:"service"`
}
