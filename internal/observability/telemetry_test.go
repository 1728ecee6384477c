package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
	"github.com/sean-rowe/weather-switch/internal/core/store"
)

var _ store.Metrics = (*Telemetry)(nil)

func TestTelemetry_ExportsStoreMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	ctx := context.Background()

	telemetry, err := InitTelemetry(ctx, Config{
		ServiceName:    "weather-switch-test",
		ServiceVersion: "test",
		Environment:    "test",
		SampleRate:     1,
		Registerer:     registry,
	}, zap.NewNop())
	require.NoError(t, err)

	defer func() { _ = telemetry.Shutdown(ctx) }()

	telemetry.RecordSearch(ctx, domain.ProviderOpenWeather, domain.OutcomeSuccess, 120*time.Millisecond)
	telemetry.RecordCacheHit(ctx, domain.ProviderOpenWeather)
	telemetry.RecordCacheMiss(ctx, domain.ProviderWeatherAPI)
	telemetry.RecordAttempt(ctx, domain.ProviderWeatherAPI, time.Second, domain.NewTimeoutError(domain.RequestPolicy{Timeout: time.Second}))
	telemetry.RecordRequest(ctx, "POST", "/api/v1/search", 200, 5*time.Millisecond)
	telemetry.RecordDBQuery(ctx, "LogSearch", time.Millisecond, errors.New("boom"))

	families, err := registry.Gather()
	require.NoError(t, err)

	var names []string
	for _, family := range families {
		names = append(names, family.GetName())
	}

	joined := strings.Join(names, " ")
	for _, expected := range []string{"weather_searches", "weather_cache_hits", "weather_cache_misses", "weather_attempt_duration", "http_requests"} {
		assert.Contains(t, joined, expected)
	}
}

func TestAttemptCode(t *testing.T) {
	assert.Equal(t, "OK", attemptCode(nil))
	assert.Equal(t, "TIMEOUT", attemptCode(domain.NewTimeoutError(domain.RequestPolicy{Timeout: time.Second})))
	assert.Equal(t, "UNKNOWN", attemptCode(errors.New("plain")))
}
