// Package circuitbreaker protects upstream weather and geocoding endpoints
// from repeated calls while they are failing. It wraps Sony's GoBreaker with
// tracing and logging and exposes the result as a ports.Transport decorator.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

// Breaker wraps a single gobreaker.CircuitBreaker.
type Breaker struct {
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	name    string
}

// Config defines when a breaker opens and how long it stays open.
type Config struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultConfig returns the settings used for provider endpoints.
func DefaultConfig() Config {
	return Config{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
	}
}

// NewBreaker creates a breaker. Without ReadyToTrip it opens once at least
// three requests were seen and half of them failed.
func NewBreaker(cfg Config, logger *zap.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.ReadyToTrip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))

			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)

			return counts.Requests >= 3 && failureRatio >= 0.5
		}
	}

	return &Breaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
		name:    cfg.Name,
	}
}

// Execute runs fn through the breaker.
//
// Returns:
//   - error: fn's error, or gobreaker.ErrOpenState / gobreaker.ErrTooManyRequests
func (b *Breaker) Execute(ctx context.Context, operation string, fn func() error) error {
	tracer := otel.Tracer("circuit-breaker")
	_, span := tracer.Start(ctx, "CircuitBreaker.Execute")

	defer span.End()

	span.SetAttributes(
		attribute.String("circuit_breaker.name", b.name),
		attribute.String("circuit_breaker.operation", operation),
		attribute.String("circuit_breaker.state", b.breaker.State().String()),
	)

	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if err != nil {
		span.RecordError(err)

		b.logger.Warn("circuit breaker execution failed",
			zap.String("name", b.name),
			zap.String("operation", operation),
			zap.String("state", b.breaker.State().String()),
			zap.Error(err))
	}

	span.SetAttributes(
		attribute.String("circuit_breaker.final_state", b.breaker.State().String()),
		attribute.Bool("circuit_breaker.success", err == nil),
	)

	return err
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

// Counts returns the counters of the current interval.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.breaker.Counts()
}

// upstreamStatusError marks a 5xx response so the breaker counts it as a failure.
type upstreamStatusError struct {
	status int
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.status)
}

// Transport decorates a ports.Transport with a breaker. Server errors count
// against the breaker but are still handed back as responses, so adapters map
// them exactly as they would without the breaker.
type Transport struct {
	next    ports.Transport
	breaker *Breaker
}

// WrapTransport returns next guarded by b.
func WrapTransport(next ports.Transport, b *Breaker) *Transport {
	return &Transport{next: next, breaker: b}
}

// Get implements ports.Transport.
func (t *Transport) Get(ctx context.Context, url string, headers map[string]string) (*ports.HTTPResponse, error) {
	var resp *ports.HTTPResponse

	err := t.breaker.Execute(ctx, http.MethodGet, func() error {
		r, err := t.next.Get(ctx, url, headers)
		if err != nil {
			return err
		}

		resp = r

		if r.StatusCode >= http.StatusInternalServerError {
			return &upstreamStatusError{status: r.StatusCode}
		}

		return nil
	})

	var statusErr *upstreamStatusError
	if errors.As(err, &statusErr) {
		return resp, nil
	}

	if err != nil {
		return nil, err
	}

	return resp, nil
}

// Manager owns one breaker per upstream.
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	logger   *zap.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		breakers: make(map[string]*Breaker),
		logger:   logger,
	}
}

// GetBreaker retrieves or creates the breaker called name. cfg is ignored when it already exists.
func (m *Manager) GetBreaker(name string, cfg Config) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if breaker, exists := m.breakers[name]; exists {
		return breaker
	}

	cfg.Name = name
	breaker := NewBreaker(cfg, m.logger)
	m.breakers[name] = breaker

	return breaker
}

// Wrap guards next with the breaker called name.
func (m *Manager) Wrap(name string, next ports.Transport, cfg Config) ports.Transport {
	return WrapTransport(next, m.GetBreaker(name, cfg))
}

// GetStats returns state and counters of every breaker, keyed by name.
func (m *Manager) GetStats() map[string]interface{} {
	m.mu.Lock()
	names := make([]string, 0, len(m.breakers))
	for name := range m.breakers {
		names = append(names, name)
	}
	m.mu.Unlock()

	sort.Strings(names)

	stats := make(map[string]interface{}, len(names))

	for _, name := range names {
		m.mu.Lock()
		breaker := m.breakers[name]
		m.mu.Unlock()

		counts := breaker.Counts()
		stats[name] = map[string]interface{}{
			"state":                 breaker.State().String(),
			"requests":              counts.Requests,
			"total_successes":       counts.TotalSuccesses,
			"total_failures":        counts.TotalFailures,
			"consecutive_successes": counts.ConsecutiveSuccesses,
			"consecutive_failures":  counts.ConsecutiveFailures,
		}
	}

	return stats
}
