package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	for _, p := range Providers() {
		parsed, err := ParseProvider(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
		assert.True(t, parsed.Valid())
	}

	_, err := ParseProvider("OpenWeather")
	assert.EqualError(t, err, `unknown weather provider "OpenWeather"`)
}

func TestProviderLabel(t *testing.T) {
	assert.Equal(t, "OpenWeather", ProviderOpenWeather.Label())
	assert.Equal(t, "Met.no", ProviderWeatherAPI.Label())
	assert.Equal(t, "custom", Provider("custom").Label())
}

func TestRequestPolicy(t *testing.T) {
	tests := []struct {
		name         string
		policy       RequestPolicy
		wantAttempts int
		wantMessage  string
	}{
		{name: "open-meteo defaults", policy: RequestPolicy{Timeout: 8 * time.Second, Retries: 1}, wantAttempts: 2, wantMessage: "Weather request timeout (8000ms)"},
		{name: "met.no defaults", policy: RequestPolicy{Timeout: 14 * time.Second, Retries: 2}, wantAttempts: 3, wantMessage: "Weather request timeout (14000ms)"},
		{name: "negative retries", policy: RequestPolicy{Timeout: 50 * time.Millisecond, Retries: -4}, wantAttempts: 1, wantMessage: "Weather request timeout (50ms)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantAttempts, tt.policy.Attempts())
			assert.Equal(t, tt.wantMessage, tt.policy.TimeoutMessage())
		})
	}
}

func TestCoordinatesValidate(t *testing.T) {
	assert.NoError(t, Coordinates{Latitude: 50.45, Longitude: 30.52}.Validate())
	assert.NoError(t, Coordinates{Latitude: -90, Longitude: 180}.Validate())
	assert.Error(t, Coordinates{Latitude: 95}.Validate())
	assert.Error(t, Coordinates{Longitude: -200}.Validate())
}

func TestWeatherError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("attempt 1: %w", NewTransportError(ProviderWeatherAPI, cause))

	assert.Equal(t, "attempt 1: Met.no weather request failed", err.Error())
	assert.ErrorIs(t, err, ErrTransportFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, CodeTransportFailed, ErrorCode(err))

	assert.Equal(t, "Malformed OpenWeather response", NewMalformedResponseError(ProviderOpenWeather, nil).Error())
	assert.Equal(t, CodeTimeout, ErrorCode(NewTimeoutError(RequestPolicy{Timeout: time.Second})))
	assert.Equal(t, "UNKNOWN", ErrorCode(errors.New("plain")))
}
