package metno

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

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

const lvivCompact = `{
	"properties": {
		"timeseries": [
			{
				"time": "2026-02-18T10:00:00Z",
				"data": {
					"instant": {"details": {"air_temperature": -3.4, "relative_humidity": 81.2, "wind_speed": 4.1}},
					"next_1_hours": {"summary": {"symbol_code": "partly_cloudy"}}
				}
			},
			{
				"time": "2026-02-18T11:00:00Z",
				"data": {"instant": {"details": {"air_temperature": 99}}}
			}
		]
	}
}`

func TestMapCompact(t *testing.T) {
	record, err := MapCompact([]byte(lvivCompact), "Lviv, Ukraine", domain.ProviderWeatherAPI)

	require.NoError(t, err)
	assert.Equal(t, &domain.WeatherRecord{
		Temperature:   -3.4,
		Humidity:      81.2,
		WindSpeed:     4.1,
		Description:   "Partly Cloudy",
		ObservedAt:    "2026-02-18T10:00:00Z",
		LocationLabel: "Lviv, Ukraine",
		Provider:      domain.ProviderWeatherAPI,
	}, record)
}

func TestMapCompact_Defaults(t *testing.T) {
	fixed := time.Date(2026, 2, 18, 9, 30, 0, 0, time.UTC)
	nowFunc = func() time.Time { return fixed }
	t.Cleanup(func() { nowFunc = time.Now })

	body := `{"properties":{"timeseries":[{"data":{"instant":{"details":{}}}}]}}`

	record, err := MapCompact([]byte(body), "Lviv", domain.ProviderWeatherAPI)

	require.NoError(t, err)
	assert.Zero(t, record.Temperature)
	assert.Zero(t, record.Humidity)
	assert.Zero(t, record.WindSpeed)
	assert.Equal(t, "Unknown", record.Description)
	assert.Equal(t, "2026-02-18T09:30:00.000Z", record.ObservedAt)
}

func TestMapCompact_Malformed(t *testing.T) {
	bodies := map[string]string{
		"empty object":      `{}`,
		"no timeseries":     `{"properties":{}}`,
		"empty timeseries":  `{"properties":{"timeseries":[]}}`,
		"no data":           `{"properties":{"timeseries":[{"time":"x"}]}}`,
		"no instant":        `{"properties":{"timeseries":[{"data":{}}]}}`,
		"no details":        `{"properties":{"timeseries":[{"data":{"instant":{}}}]}}`,
		"invalid json body": `not json`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := MapCompact([]byte(body), "Lviv", domain.ProviderWeatherAPI)

			require.Error(t, err)
			assert.Equal(t, "Malformed Met.no response", err.Error())
			assert.True(t, errors.Is(err, domain.ErrMalformedResponse))
		})
	}
}

func TestFormatSymbol(t *testing.T) {
	tests := map[string]string{
		"partly_cloudy":   "Partly Cloudy",
		"clearsky_day":    "Clearsky Day",
		"lightrain":       "Lightrain",
		"heavysnow_night": "Heavysnow Night",
		"":                "Unknown",
	}

	for input, expected := range tests {
		assert.Equal(t, expected, FormatSymbol(input), "input %q", input)
	}
}

func TestClient_FetchCurrent(t *testing.T) {
	point := domain.GeoPoint{
		Coordinates: domain.Coordinates{Latitude: 49.84, Longitude: 24.03},
		Label:       "Lviv, Ukraine",
	}

	t.Run("success sends user agent and coordinates", func(t *testing.T) {
		transport := &stubTransport{status: http.StatusOK, body: lvivCompact}
		client := NewClient("", "", transport, zap.NewNop())

		record, err := client.FetchCurrent(context.Background(), point)

		require.NoError(t, err)
		assert.Equal(t, domain.ProviderWeatherAPI, record.Provider)
		assert.Equal(t, "Lviv, Ukraine", record.LocationLabel)
		assert.Equal(t, DefaultUserAgent, transport.headers["User-Agent"])

		parsed, err := url.Parse(transport.url)
		require.NoError(t, err)
		assert.Equal(t, "api.met.no", parsed.Host)
		assert.Equal(t, "49.84", parsed.Query().Get("lat"))
		assert.Equal(t, "24.03", parsed.Query().Get("lon"))
	})

	t.Run("custom user agent", func(t *testing.T) {
		transport := &stubTransport{status: http.StatusOK, body: lvivCompact}
		client := NewClient("http://example.test/compact", "ops@example.test", transport, zap.NewNop())

		_, err := client.FetchCurrent(context.Background(), point)

		require.NoError(t, err)
		assert.Equal(t, "ops@example.test", transport.headers["User-Agent"])
	})

	t.Run("non success status", func(t *testing.T) {
		transport := &stubTransport{status: http.StatusForbidden}
		client := NewClient("", "", transport, zap.NewNop())

		_, err := client.FetchCurrent(context.Background(), point)

		require.Error(t, err)
		assert.Equal(t, "Met.no weather request failed", err.Error())
		assert.True(t, errors.Is(err, domain.ErrTransportFailed))
	})

	t.Run("transport error", func(t *testing.T) {
		transport := &stubTransport{err: context.DeadlineExceeded}
		client := NewClient("", "", transport, zap.NewNop())

		_, err := client.FetchCurrent(context.Background(), point)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
