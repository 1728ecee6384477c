package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRestyTransport_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "weather-switch-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Probe"))

		if r.URL.Query().Get("fail") == "1" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"temperature_2m":3.5}}`))
	}))
	defer server.Close()

	transport := New(Config{UserAgent: "weather-switch-test"}, zap.NewNop())
	headers := map[string]string{"X-Probe": "yes"}

	resp, err := transport.Get(context.Background(), server.URL+"/forecast", headers)
	require.NoError(t, err)
	assert.True(t, resp.OK())

	var payload struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
		} `json:"current"`
	}
	require.NoError(t, resp.DecodeJSON(&payload))
	assert.Equal(t, 3.5, payload.Current.Temperature)

	resp, err = transport.Get(context.Background(), server.URL+"/forecast?fail=1", headers)
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRestyTransport_HeaderOverridesUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer server.Close()

	transport := New(Config{UserAgent: "default-agent"}, zap.NewNop())

	resp, err := transport.Get(context.Background(), server.URL, map[string]string{"User-Agent": "weather-switch-app/1.0"})
	require.NoError(t, err)
	assert.Equal(t, "weather-switch-app/1.0", string(resp.Body))
}

func TestRestyTransport_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	transport := New(Config{}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := transport.Get(ctx, server.URL, nil)
	assert.Error(t, err)
}
