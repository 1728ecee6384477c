// Package services wires a geocoder and a provider client into the uniform
// WeatherService the store consumes, and keeps the registry of providers.
package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
	"github.com/sean-rowe/weather-switch/internal/core/location"
	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

type weatherService struct {
	provider domain.Provider
	policy   domain.RequestPolicy
	geocoder ports.Geocoder
	client   ports.WeatherClient
	logger   *zap.Logger
}

// NewWeatherService creates the service for one provider.
//
// Parameters:
//   - provider: Provider key the service answers for
//   - policy: Timeout and retry budget the store applies to this service
//   - geocoder: Place-name resolver shared by all providers
//   - client: Provider-specific forecast client
//   - logger: Zap logger for request logging
//
// Returns:
//   - ports.WeatherService: Provider service
func NewWeatherService(
	provider domain.Provider,
	policy domain.RequestPolicy,
	geocoder ports.Geocoder,
	client ports.WeatherClient,
	logger *zap.Logger,
) ports.WeatherService {
	return &weatherService{
		provider: provider,
		policy:   policy,
		geocoder: geocoder,
		client:   client,
		logger:   logger,
	}
}

func (s *weatherService) Provider() domain.Provider {
	return s.provider
}

func (s *weatherService) Label() string {
	return s.provider.Label()
}

func (s *weatherService) RequestPolicy() domain.RequestPolicy {
	return s.policy
}

// GetWeather resolves location and fetches its current conditions.
// Coordinate input skips geocoding; anything else goes through the geocoder.
func (s *weatherService) GetWeather(ctx context.Context, raw string) (*domain.WeatherRecord, error) {
	tracer := otel.Tracer("services")
	ctx, span := tracer.Start(ctx, "WeatherService.GetWeather")

	defer span.End()

	text := strings.TrimSpace(raw)

	span.SetAttributes(
		attribute.String("weather.provider", string(s.provider)),
		attribute.String("weather.location", text),
	)

	point, err := location.Resolve(ctx, s.geocoder, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		s.logger.Warn("failed to resolve location",
			zap.String("provider", string(s.provider)),
			zap.String("location", text),
			zap.Error(err))

		return nil, err
	}

	record, err := s.client.FetchCurrent(ctx, point)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		s.logger.Error("failed to get current weather",
			zap.String("provider", string(s.provider)),
			zap.Float64("latitude", point.Latitude),
			zap.Float64("longitude", point.Longitude),
			zap.Error(err))

		return nil, err
	}

	s.logger.Info("weather retrieved successfully",
		zap.String("provider", string(s.provider)),
		zap.String("location", record.LocationLabel),
		zap.String("description", record.Description))

	return record, nil
}
