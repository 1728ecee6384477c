// Package location normalizes and validates raw location input and turns it
// into a resolved point, either by parsing "lat,lon" text or by geocoding.
package location

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

// Validation messages surfaced to the user verbatim.
const (
	MsgRequired    = "Location is required"
	MsgTooShort    = "Location must be at least 2 characters"
	MsgUnsupported = "Location contains unsupported characters"
)

var (
	coordsPattern = regexp.MustCompile(`^-?\d{1,2}(?:\.\d+)?\s*,\s*-?\d{1,3}(?:\.\d+)?$`)
	cityPattern   = regexp.MustCompile(`^[a-zA-Z .'-]+(?:,[a-zA-Z .'-]+)*$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()

	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("city_name", func(fl validator.FieldLevel) bool {
		return cityPattern.MatchString(fl.Field().String())
	})

	return v
}

// Normalize trims the input and collapses internal whitespace runs to a single
// space. Unicode spaces such as NBSP and the byte order mark count as whitespace.
func Normalize(raw string) string {
	return strings.Join(strings.FieldsFunc(raw, isSpace), " ")
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// IsCoordinatePair reports whether text has the "<lat>,<lon>" shape.
// It does not check numeric ranges.
func IsCoordinatePair(text string) bool {
	return coordsPattern.MatchString(Normalize(text))
}

// ParseCoordinates returns the coordinates in text when it has the pair shape
// and both values are in range. A false result means "not coordinates" and
// callers fall back to geocoding; it is never an error.
func ParseCoordinates(text string) (domain.Coordinates, bool) {
	value := Normalize(text)

	if !IsCoordinatePair(value) {
		return domain.Coordinates{}, false
	}

	latRaw, lonRaw, _ := strings.Cut(value, ",")

	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil {
		return domain.Coordinates{}, false
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(lonRaw), 64)
	if err != nil {
		return domain.Coordinates{}, false
	}

	coords := domain.Coordinates{Latitude: lat, Longitude: lon}

	if err := coords.Validate(); err != nil {
		return domain.Coordinates{}, false
	}

	return coords, true
}

// Validate checks raw input and returns a VALIDATION WeatherError, or nil when
// the input may be searched.
//
// A coordinate-shaped value is accepted without a range check; out-of-range
// pairs such as "95, 200" therefore pass here and are geocoded downstream.
//
// Parameters:
//   - raw: Location text as typed by the user
//
// Returns:
//   - error: *domain.WeatherError with the user-facing message, or nil
func Validate(raw string) error {
	value := Normalize(raw)

	if value == "" {
		return domain.NewValidationError(MsgRequired)
	}

	if IsCoordinatePair(value) {
		return nil
	}

	if err := validate.Var(value, "min=2"); err != nil {
		return domain.NewValidationError(MsgTooShort)
	}

	if err := validate.Var(value, "city_name"); err != nil {
		return domain.NewValidationError(MsgUnsupported)
	}

	return nil
}

// Resolve turns user text into a GeoPoint. Parsable coordinates are used
// directly and labelled with the trimmed text; anything else goes to the geocoder.
//
// Parameters:
//   - ctx: Context for the geocoding call
//   - geocoder: Lookup used when the text is not a coordinate pair
//   - text: Location text
//
// Returns:
//   - domain.GeoPoint: Resolved point and display label
//   - error: Geocoder failure, passed through unchanged
func Resolve(ctx context.Context, geocoder ports.Geocoder, text string) (domain.GeoPoint, error) {
	trimmed := strings.TrimSpace(text)

	if coords, ok := ParseCoordinates(trimmed); ok {
		return domain.GeoPoint{Coordinates: coords, Label: trimmed}, nil
	}

	return geocoder.Resolve(ctx, trimmed)
}
