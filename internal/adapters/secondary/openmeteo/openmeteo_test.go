package openmeteo

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

// stubTransport records the last request and replies with a canned response.
type stubTransport struct {
	status  int
	body    string
	err     error
	url     string
	headers map[string]string
}

func (s *stubTransport) Get(_ context.Context, rawURL string, headers map[string]string) (*ports.HTTPResponse, error) {
	s.url = rawURL
	s.headers = headers

	if s.err != nil {
		return nil, s.err
	}

	return &ports.HTTPResponse{StatusCode: s.status, Body: []byte(s.body)}, nil
}

const kyivForecast = `{
	"current": {
		"temperature_2m": 21,
		"relative_humidity_2m": 43,
		"wind_speed_10m": 11,
		"weather_code": 2,
		"time": "2026-02-18T10:00"
	}
}`

func TestMapCurrent(t *testing.T) {
	record, err := MapCurrent([]byte(kyivForecast), "Kyiv, Ukraine", domain.ProviderOpenWeather)

	require.NoError(t, err)
	assert.Equal(t, &domain.WeatherRecord{
		Temperature:   21,
		Humidity:      43,
		WindSpeed:     11,
		Description:   "Partly cloudy",
		ObservedAt:    "2026-02-18T10:00",
		LocationLabel: "Kyiv, Ukraine",
		Provider:      domain.ProviderOpenWeather,
	}, record)
}

func TestMapCurrent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty object", body: `{}`},
		{name: "null current", body: `{"current": null}`},
		{name: "empty current", body: `{"current": {}}`},
		{name: "missing weather code", body: `{"current": {"temperature_2m": 1, "relative_humidity_2m": 2, "wind_speed_10m": 3}}`},
		{name: "not json", body: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := MapCurrent([]byte(tt.body), "Kyiv", domain.ProviderOpenWeather)

			assert.Nil(t, record)
			require.Error(t, err)
			assert.Equal(t, "Malformed OpenWeather response", err.Error())
			assert.True(t, errors.Is(err, domain.ErrMalformedResponse))
		})
	}
}

func TestDescribeCode(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{0, "Clear sky"},
		{1, "Partly cloudy"},
		{2, "Partly cloudy"},
		{3, "Partly cloudy"},
		{4, "Cloudy"},
		{45, "Cloudy"},
		{59, "Cloudy"},
		{60, "Rain"},
		{61, "Rain"},
		{79, "Rain"},
		{80, "Storm"},
		{95, "Storm"},
		{-1, "Storm"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, DescribeCode(tt.code), "code %d", tt.code)
	}
}

func TestClient_FetchCurrent(t *testing.T) {
	point := domain.GeoPoint{
		Coordinates: domain.Coordinates{Latitude: 50.45, Longitude: 30.52},
		Label:       "Kyiv, Ukraine",
	}

	t.Run("success", func(t *testing.T) {
		transport := &stubTransport{status: http.StatusOK, body: kyivForecast}
		client := NewClient("", transport, zap.NewNop())

		record, err := client.FetchCurrent(context.Background(), point)

		require.NoError(t, err)
		assert.Equal(t, domain.ProviderOpenWeather, record.Provider)
		assert.Equal(t, "Kyiv, Ukraine", record.LocationLabel)
		assert.Equal(t, 21.0, record.Temperature)

		parsed, err := url.Parse(transport.url)
		require.NoError(t, err)
		assert.Equal(t, "api.open-meteo.com", parsed.Host)
		assert.Equal(t, "50.45", parsed.Query().Get("latitude"))
		assert.Equal(t, "30.52", parsed.Query().Get("longitude"))
		assert.Equal(t, currentFields, parsed.Query().Get("current"))
	})

	t.Run("non success status", func(t *testing.T) {
		transport := &stubTransport{status: http.StatusBadGateway, body: `{}`}
		client := NewClient("http://example.test/forecast", transport, zap.NewNop())

		_, err := client.FetchCurrent(context.Background(), point)

		require.Error(t, err)
		assert.Equal(t, "OpenWeather weather request failed", err.Error())
		assert.True(t, errors.Is(err, domain.ErrTransportFailed))
	})

	t.Run("transport error", func(t *testing.T) {
		cause := errors.New("connection refused")
		transport := &stubTransport{err: cause}
		client := NewClient("", transport, zap.NewNop())

		_, err := client.FetchCurrent(context.Background(), point)

		require.Error(t, err)
		assert.Equal(t, "OpenWeather weather request failed", err.Error())
		assert.ErrorIs(t, err, cause)
	})

	t.Run("malformed body", func(t *testing.T) {
		transport := &stubTransport{status: http.StatusOK, body: `{"hourly": {}}`}
		client := NewClient("", transport, zap.NewNop())

		_, err := client.FetchCurrent(context.Background(), point)

		require.Error(t, err)
		assert.Equal(t, "Malformed OpenWeather response", err.Error())
	})
}

func TestGeocoder_Resolve(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		err           error
		expectedLabel string
		expectedError string
	}{
		{
			name:          "name and country",
			status:        http.StatusOK,
			body:          `{"results":[{"name":"Kyiv","country":"Ukraine","latitude":50.45,"longitude":30.52}]}`,
			expectedLabel: "Kyiv, Ukraine",
		},
		{
			name:          "missing country",
			status:        http.StatusOK,
			body:          `{"results":[{"name":"Atlantis","latitude":1,"longitude":2}]}`,
			expectedLabel: "Atlantis",
		},
		{
			name:          "missing name falls back to input",
			status:        http.StatusOK,
			body:          `{"results":[{"country":"Ukraine","latitude":50.45,"longitude":30.52}]}`,
			expectedLabel: "New York, Ukraine",
		},
		{
			name:          "no results",
			status:        http.StatusOK,
			body:          `{}`,
			expectedError: "Location was not found",
		},
		{
			name:          "missing coordinates",
			status:        http.StatusOK,
			body:          `{"results":[{"name":"Kyiv"}]}`,
			expectedError: "Location was not found",
		},
		{
			name:          "upstream failure",
			status:        http.StatusInternalServerError,
			body:          ``,
			expectedError: "Geocoding request failed",
		},
		{
			name:          "transport failure",
			err:           errors.New("dial tcp: timeout"),
			expectedError: "Geocoding request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &stubTransport{status: tt.status, body: tt.body, err: tt.err}
			geocoder := NewGeocoder("", transport, zap.NewNop())

			point, err := geocoder.Resolve(context.Background(), " New York ")

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectedError, err.Error())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedLabel, point.Label)

			parsed, err := url.Parse(transport.url)
			require.NoError(t, err)
			assert.Equal(t, "New York", parsed.Query().Get("name"))
			assert.Equal(t, "1", parsed.Query().Get("count"))
		})
	}
}
