// Package ports declares the interfaces the core depends on and the adapters implement.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
)

// WeatherService is the uniform contract every provider exposes to the store.
type WeatherService interface {
	Provider() domain.Provider
	Label() string
	RequestPolicy() domain.RequestPolicy
	GetWeather(ctx context.Context, location string) (*domain.WeatherRecord, error)
}

// WeatherClient performs the provider-specific request for an already resolved point.
type WeatherClient interface {
	FetchCurrent(ctx context.Context, point domain.GeoPoint) (*domain.WeatherRecord, error)
}

// Geocoder translates free-text place names into coordinates and a display label.
type Geocoder interface {
	Resolve(ctx context.Context, location string) (domain.GeoPoint, error)
}

// ErrCacheMiss is returned by WeatherCache.Get when no entry exists for the key.
var ErrCacheMiss = errors.New("cache miss")

// WeatherCache stores records by (provider, normalized query) key for one session.
type WeatherCache interface {
	Get(ctx context.Context, key string) (*domain.WeatherRecord, error)
	Set(ctx context.Context, key string, record *domain.WeatherRecord) error
}

// SearchAuditor receives finished searches. Implementations must not assume
// they are called on the search goroutine.
type SearchAuditor interface {
	RecordSearch(ctx context.Context, audit domain.SearchAudit) error
}

// RateLimitService decides whether a caller may trigger another search.
type RateLimitService interface {
	Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error)
	Reset(ctx context.Context, identifier string) error
}
