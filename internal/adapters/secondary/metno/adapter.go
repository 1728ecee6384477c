package metno

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
)

// timestampLayout matches the millisecond UTC form used when the payload carries no time.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// nowFunc is replaced in tests.
var nowFunc = time.Now

type compactResponse struct {
	Properties *struct {
		Timeseries []timeseriesEntry `json:"timeseries"`
	} `json:"properties"`
}

type timeseriesEntry struct {
	Time string `json:"time"`
	Data *struct {
		Instant *struct {
			Details *instantDetails `json:"details"`
		} `json:"instant"`
		NextHour *struct {
			Summary *struct {
				SymbolCode string `json:"symbol_code"`
			} `json:"summary"`
		} `json:"next_1_hours"`
	} `json:"data"`
}

type instantDetails struct {
	AirTemperature   float64 `json:"air_temperature"`
	RelativeHumidity float64 `json:"relative_humidity"`
	WindSpeed        float64 `json:"wind_speed"`
}

var errMissingTimeseries = errors.New("timeseries or instant details missing")

// MapCompact translates a locationforecast/compact payload into a WeatherRecord.
// Only the first timeseries entry is read. Missing readings default to zero and
// a missing time defaults to the current instant.
func MapCompact(body []byte, label string, provider domain.Provider) (*domain.WeatherRecord, error) {
	var payload compactResponse

	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.NewMalformedResponseError(provider, err)
	}

	if payload.Properties == nil || len(payload.Properties.Timeseries) == 0 {
		return nil, domain.NewMalformedResponseError(provider, errMissingTimeseries)
	}

	entry := payload.Properties.Timeseries[0]

	if entry.Data == nil || entry.Data.Instant == nil || entry.Data.Instant.Details == nil {
		return nil, domain.NewMalformedResponseError(provider, errMissingTimeseries)
	}

	details := entry.Data.Instant.Details

	symbol := ""
	if entry.Data.NextHour != nil && entry.Data.NextHour.Summary != nil {
		symbol = entry.Data.NextHour.Summary.SymbolCode
	}

	observedAt := entry.Time
	if observedAt == "" {
		observedAt = nowFunc().UTC().Format(timestampLayout)
	}

	return &domain.WeatherRecord{
		Temperature:   details.AirTemperature,
		Humidity:      details.RelativeHumidity,
		WindSpeed:     details.WindSpeed,
		Description:   FormatSymbol(symbol),
		ObservedAt:    observedAt,
		LocationLabel: label,
		Provider:      provider,
	}, nil
}

// FormatSymbol turns a symbol code such as "partly_cloudy" into "Partly Cloudy".
// An empty code reads as "Unknown".
func FormatSymbol(code string) string {
	if code == "" {
		return "Unknown"
	}

	var b strings.Builder
	b.Grow(len(code))

	inWord := false
	for _, r := range strings.ReplaceAll(code, "_", " ") {
		isWord := unicode.IsLetter(r) || unicode.IsDigit(r)

		if isWord && !inWord {
			r = unicode.ToUpper(r)
		}

		b.WriteRune(r)
		inWord = isWord
	}

	return b.String()
}
