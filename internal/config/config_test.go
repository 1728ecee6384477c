package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "https://api.open-meteo.com/v1/forecast", cfg.Providers.OpenMeteoBaseURL)
	assert.Equal(t, "weather-switch-app/1.0", cfg.Providers.MetNoUserAgent)
	assert.Equal(t, 450*time.Millisecond, cfg.Store.Debounce)
	assert.Equal(t, "memory", cfg.Store.CacheBackend)
	assert.Equal(t, domain.ProviderOpenWeather, cfg.DefaultProvider())
	assert.True(t, cfg.Providers.CircuitBreakerEnabled)
	assert.Empty(t, cfg.Observability.OTLPEndpoint)

	assert.Equal(t, map[domain.Provider]domain.RequestPolicy{
		domain.ProviderOpenWeather: {Timeout: 8 * time.Second, Retries: 1},
		domain.ProviderWeatherAPI:  {Timeout: 14 * time.Second, Retries: 2},
	}, cfg.Policies())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("METNO_TIMEOUT", "2500ms")
	t.Setenv("METNO_RETRIES", "0")
	t.Setenv("DEFAULT_PROVIDER", "weatherApi")
	t.Setenv("SEARCH_DEBOUNCE", "1s")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("LOG_FILE", "/tmp/weather-switch.log")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, domain.RequestPolicy{Timeout: 2500 * time.Millisecond, Retries: 0}, cfg.Policies()[domain.ProviderWeatherAPI])
	assert.Equal(t, domain.ProviderWeatherAPI, cfg.DefaultProvider())
	assert.Equal(t, time.Second, cfg.Store.Debounce)
	assert.Equal(t, "/tmp/weather-switch.log", cfg.Log.File)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "unknown provider", env: map[string]string{"DEFAULT_PROVIDER": "darkSky"}, want: "DEFAULT_PROVIDER"},
		{name: "negative retries", env: map[string]string{"OPENWEATHER_RETRIES": "-1"}, want: "retries"},
		{name: "redis cache without redis", env: map[string]string{"CACHE_BACKEND": "redis"}, want: "REDIS_ENABLED"},
		{name: "unknown cache backend", env: map[string]string{"CACHE_BACKEND": "disk"}, want: "CACHE_BACKEND"},
		{name: "malformed duration", env: map[string]string{"OPENWEATHER_TIMEOUT": "soon"}, want: "configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := FromEnv()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
