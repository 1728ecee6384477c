package openmeteo

import (
	"encoding/json"
	"errors"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
)

// forecastResponse is the subset of /v1/forecast the adapter reads. Pointers
// distinguish an absent field from a zero reading.
type forecastResponse struct {
	Current *currentConditions `json:"current"`
}

type currentConditions struct {
	Temperature *float64 `json:"temperature_2m"`
	Humidity    *float64 `json:"relative_humidity_2m"`
	WindSpeed   *float64 `json:"wind_speed_10m"`
	WeatherCode *int     `json:"weather_code"`
	Time        string   `json:"time"`
}

var errMissingCurrent = errors.New("current conditions missing")

// MapCurrent translates a forecast payload into a WeatherRecord.
//
// Parameters:
//   - body: Raw JSON body returned by the forecast endpoint
//   - label: Display label of the resolved location
//   - provider: Provider key stamped on the record
//
// Returns:
//   - *domain.WeatherRecord: Canonical record
//   - error: MALFORMED_RESPONSE WeatherError when "current" or one of its readings is absent
func MapCurrent(body []byte, label string, provider domain.Provider) (*domain.WeatherRecord, error) {
	var payload forecastResponse

	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.NewMalformedResponseError(provider, err)
	}

	current := payload.Current

	if current == nil || current.Temperature == nil || current.Humidity == nil ||
		current.WindSpeed == nil || current.WeatherCode == nil {
		return nil, domain.NewMalformedResponseError(provider, errMissingCurrent)
	}

	return &domain.WeatherRecord{
		Temperature:   *current.Temperature,
		Humidity:      *current.Humidity,
		WindSpeed:     *current.WindSpeed,
		Description:   DescribeCode(*current.WeatherCode),
		ObservedAt:    current.Time,
		LocationLabel: label,
		Provider:      provider,
	}, nil
}

// DescribeCode maps a WMO weather code onto a coarse description.
// Codes outside the ladder, including negative ones, read as "Storm".
func DescribeCode(code int) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code >= 1 && code < 4:
		return "Partly cloudy"
	case code >= 4 && code < 60:
		return "Cloudy"
	case code >= 60 && code < 80:
		return "Rain"
	default:
		return "Storm"
	}
}
