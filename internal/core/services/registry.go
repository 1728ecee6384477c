package services

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/adapters/secondary/metno"
	"github.com/sean-rowe/weather-switch/internal/adapters/secondary/openmeteo"
	"github.com/sean-rowe/weather-switch/internal/core/domain"
	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

// Registry maps every provider key to its service. It is built once and read-only afterwards.
type Registry map[domain.Provider]ports.WeatherService

// RegistryConfig carries what NewRegistry needs to build both providers.
type RegistryConfig struct {
	// Transports per provider; a provider without an entry uses Transport.
	Transport  ports.Transport
	Transports map[domain.Provider]ports.Transport

	// Geocoder is shared by both services. When nil, an Open-Meteo geocoder is built on Transport.
	Geocoder ports.Geocoder

	OpenMeteoBaseURL string
	GeocodingBaseURL string
	MetNoBaseURL     string
	MetNoUserAgent   string

	Policies map[domain.Provider]domain.RequestPolicy

	Logger *zap.Logger
}

// DefaultPolicies returns the built-in request policy of each provider.
func DefaultPolicies() map[domain.Provider]domain.RequestPolicy {
	return map[domain.Provider]domain.RequestPolicy{
		domain.ProviderOpenWeather: {Timeout: 8000 * time.Millisecond, Retries: 1},
		domain.ProviderWeatherAPI:  {Timeout: 14000 * time.Millisecond, Retries: 2},
	}
}

// NewRegistry builds exactly one service per provider.
//
// Parameters:
//   - cfg: Transports, endpoints, policies and logger
//
// Returns:
//   - Registry: Provider to service mapping
func NewRegistry(cfg RegistryConfig) Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	transportFor := func(p domain.Provider) ports.Transport {
		if t, ok := cfg.Transports[p]; ok && t != nil {
			return t
		}

		return cfg.Transport
	}

	policies := DefaultPolicies()
	for p, policy := range cfg.Policies {
		policies[p] = policy
	}

	geocoder := cfg.Geocoder
	if geocoder == nil {
		geocoder = openmeteo.NewGeocoder(cfg.GeocodingBaseURL, cfg.Transport, logger.Named("geocoder"))
	}

	openWeather := openmeteo.NewClient(cfg.OpenMeteoBaseURL, transportFor(domain.ProviderOpenWeather), logger.Named("openmeteo"))
	metNo := metno.NewClient(cfg.MetNoBaseURL, cfg.MetNoUserAgent, transportFor(domain.ProviderWeatherAPI), logger.Named("metno"))

	return Registry{
		domain.ProviderOpenWeather: NewWeatherService(
			domain.ProviderOpenWeather, policies[domain.ProviderOpenWeather], geocoder, openWeather, logger),
		domain.ProviderWeatherAPI: NewWeatherService(
			domain.ProviderWeatherAPI, policies[domain.ProviderWeatherAPI], geocoder, metNo, logger),
	}
}

// Get returns the service for p.
func (r Registry) Get(p domain.Provider) (ports.WeatherService, error) {
	service, ok := r[p]
	if !ok {
		return nil, fmt.Errorf("unknown weather provider %q", p)
	}

	return service, nil
}

// Providers lists the registered keys in display order.
func (r Registry) Providers() []domain.Provider {
	providers := make([]domain.Provider, 0, len(r))

	for _, p := range domain.Providers() {
		if _, ok := r[p]; ok {
			providers = append(providers, p)
		}
	}

	return providers
}
