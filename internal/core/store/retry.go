package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

type attemptResult struct {
	record *domain.WeatherRecord
	err    error
}

// fetchWithRetry makes up to policy.Attempts() calls and returns the first
// success or the last failure, together with the number of calls made.
func (s *Store) fetchWithRetry(ctx context.Context, service ports.WeatherService, query string) (*domain.WeatherRecord, int, error) {
	policy := service.RequestPolicy()

	var lastErr error

	attempts := 0
	for attempts < policy.Attempts() {
		attempts++

		start := time.Now()
		record, err := s.withTimeout(ctx, service, query, policy)
		s.metrics.RecordAttempt(ctx, service.Provider(), time.Since(start), err)

		if err == nil {
			return record, attempts, nil
		}

		lastErr = err

		s.logger.Debug("weather attempt failed",
			zap.String("provider", string(service.Provider())),
			zap.Int("attempt", attempts),
			zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}

	return nil, attempts, lastErr
}

// withTimeout races one service call against the policy timer. The call runs
// on its own goroutine and reports into a buffered channel, so a result that
// arrives after the timer fired is dropped without blocking anyone. Its
// context is cancelled once the race is decided.
func (s *Store) withTimeout(ctx context.Context, service ports.WeatherService, query string, policy domain.RequestPolicy) (*domain.WeatherRecord, error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan attemptResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- attemptResult{err: fmt.Errorf("weather service panicked: %v", r)}
			}
		}()

		record, err := service.GetWeather(attemptCtx, query)
		results <- attemptResult{record: record, err: err}
	}()

	var expired <-chan time.Time

	if policy.Timeout > 0 {
		timer := time.NewTimer(policy.Timeout)
		defer timer.Stop()

		expired = timer.C
	}

	select {
	case res := <-results:
		if res.err == nil && res.record == nil {
			return nil, domain.NewMalformedResponseError(service.Provider(), nil)
		}

		return res.record, res.err
	case <-expired:
		return nil, domain.NewTimeoutError(policy)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
