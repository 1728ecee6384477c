package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

func TestTransport_OpensAfterFailures(t *testing.T) {
	calls := 0
	next := ports.TransportFunc(func(context.Context, string, map[string]string) (*ports.HTTPResponse, error) {
		calls++
		return nil, errors.New("connection refused")
	})

	manager := NewManager(zap.NewNop())
	transport := manager.Wrap("openWeather-api", next, Config{Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := transport.Get(context.Background(), "http://example.test", nil)
		require.Error(t, err)
	}

	_, err := transport.Get(context.Background(), "http://example.test", nil)

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, calls)
	assert.Equal(t, gobreaker.StateOpen, manager.GetBreaker("openWeather-api", Config{}).State())
}

func TestTransport_ServerErrorsReturnResponse(t *testing.T) {
	next := ports.TransportFunc(func(context.Context, string, map[string]string) (*ports.HTTPResponse, error) {
		return &ports.HTTPResponse{StatusCode: http.StatusBadGateway}, nil
	})

	breaker := NewBreaker(Config{Name: "weatherApi-api"}, zap.NewNop())
	transport := WrapTransport(next, breaker)

	resp, err := transport.Get(context.Background(), "http://example.test", nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, uint32(1), breaker.Counts().TotalFailures)
}

func TestTransport_ClientErrorsDoNotTrip(t *testing.T) {
	next := ports.TransportFunc(func(context.Context, string, map[string]string) (*ports.HTTPResponse, error) {
		return &ports.HTTPResponse{StatusCode: http.StatusNotFound}, nil
	})

	breaker := NewBreaker(Config{Name: "geocoding-api"}, zap.NewNop())
	transport := WrapTransport(next, breaker)

	for i := 0; i < 5; i++ {
		resp, err := transport.Get(context.Background(), "http://example.test", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	assert.Equal(t, gobreaker.StateClosed, breaker.State())
	assert.Zero(t, breaker.Counts().TotalFailures)
}

func TestManager_GetStats(t *testing.T) {
	manager := NewManager(zap.NewNop())
	first := manager.GetBreaker("openWeather-api", DefaultConfig())
	again := manager.GetBreaker("openWeather-api", Config{MaxRequests: 9})
	manager.GetBreaker("weatherApi-api", DefaultConfig())

	assert.Same(t, first, again)
	assert.Equal(t, "openWeather-api", first.Name())

	stats := manager.GetStats()
	require.Len(t, stats, 2)

	entry, ok := stats["weatherApi-api"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "closed", entry["state"])
}
