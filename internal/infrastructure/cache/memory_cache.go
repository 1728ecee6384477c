// Package cache provides the session weather cache: an in-memory store backed
// by go-cache and a Redis store for sharing a session across instances.
// Entries never expire; a session's cache lives as long as the session.
package cache

import (
	"context"
	"encoding/json"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

// ErrCacheMiss indicates a cache key was not found.
var ErrCacheMiss = ports.ErrCacheMiss

// MemoryCache keeps records in process memory.
type MemoryCache struct {
	cache  *gocache.Cache
	logger *zap.Logger
}

// NewMemoryCache creates an empty in-memory cache whose entries never expire.
func NewMemoryCache(logger *zap.Logger) *MemoryCache {
	return &MemoryCache{
		cache:  gocache.New(gocache.NoExpiration, 0),
		logger: logger,
	}
}

// Get returns the record stored under key, or ErrCacheMiss.
func (m *MemoryCache) Get(ctx context.Context, key string) (*domain.WeatherRecord, error) {
	tracer := otel.Tracer("cache")
	_, span := tracer.Start(ctx, "MemoryCache.Get")

	defer span.End()

	span.SetAttributes(attribute.String("cache.key", key))

	if value, found := m.cache.Get(key); found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		m.logger.Debug("memory cache hit", zap.String("key", key))

		return value.(*domain.WeatherRecord), nil
	}

	span.SetAttributes(attribute.Bool("cache.hit", false))
	m.logger.Debug("memory cache miss", zap.String("key", key))

	return nil, ErrCacheMiss
}

// Set stores record under key. Records are immutable, so the pointer is kept as is.
func (m *MemoryCache) Set(ctx context.Context, key string, record *domain.WeatherRecord) error {
	tracer := otel.Tracer("cache")
	_, span := tracer.Start(ctx, "MemoryCache.Set")

	defer span.End()

	span.SetAttributes(attribute.String("cache.key", key))

	m.cache.Set(key, record, gocache.NoExpiration)
	m.logger.Debug("memory cache set", zap.String("key", key))

	return nil
}

// Len reports the number of cached records.
func (m *MemoryCache) Len() int {
	return m.cache.ItemCount()
}

func encode(record *domain.WeatherRecord) ([]byte, error) {
	return json.Marshal(record)
}

func decode(data []byte) (*domain.WeatherRecord, error) {
	var record domain.WeatherRecord

	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}

	return &record, nil
}
