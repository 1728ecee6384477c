package store

import (
	"context"
	"sync"
	"time"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

// Metrics receives search telemetry from the store.
type Metrics interface {
	RecordSearch(ctx context.Context, provider domain.Provider, outcome domain.SearchOutcome, duration time.Duration)
	RecordCacheHit(ctx context.Context, provider domain.Provider)
	RecordCacheMiss(ctx context.Context, provider domain.Provider)
	RecordAttempt(ctx context.Context, provider domain.Provider, duration time.Duration, err error)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordSearch(context.Context, domain.Provider, domain.SearchOutcome, time.Duration) {}
func (NopMetrics) RecordCacheHit(context.Context, domain.Provider)                                   {}
func (NopMetrics) RecordCacheMiss(context.Context, domain.Provider)                                  {}
func (NopMetrics) RecordAttempt(context.Context, domain.Provider, time.Duration, error)              {}

// mapCache is the fallback used when no cache is injected.
type mapCache struct {
	mu      sync.RWMutex
	records map[string]*domain.WeatherRecord
}

func newMapCache() *mapCache {
	return &mapCache{records: make(map[string]*domain.WeatherRecord)}
}

func (c *mapCache) Get(_ context.Context, key string) (*domain.WeatherRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	record, ok := c.records[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}

	return record, nil
}

func (c *mapCache) Set(_ context.Context, key string, record *domain.WeatherRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records[key] = record

	return nil
}
