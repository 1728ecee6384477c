package location

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
)

type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Resolve(ctx context.Context, location string) (domain.GeoPoint, error) {
	args := m.Called(ctx, location)
	return args.Get(0).(domain.GeoPoint), args.Error(1)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{" New   York ", "New York"},
		{"\tKyiv\n", "Kyiv"},
		{"", ""},
		{"   ", ""},
		{"Rio  de \t Janeiro", "Rio de Janeiro"},
		{"New\u00a0York", "New York"},
		{"New\vYork", "New York"},
		{"New\u2003\u2003York", "New York"},
		{"\ufeff Oslo \u3000", "Oslo"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Normalize(tt.input), "input %q", tt.input)
	}
}

func TestIsCoordinatePair(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"50.45, 30.52", true},
		{"50.45,30.52", true},
		{"-33.9 , -151.2", true},
		{"50.45,\u00a030.52", true},
		{" 5,100 ", true},
		{"95, 200", true},
		{"123,45", false},
		{"50.45", false},
		{"50.,30", false},
		{"Kyiv", false},
		{"50.45, 30.52, 1", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, IsCoordinatePair(tt.input), "input %q", tt.input)
	}
}

func TestParseCoordinates(t *testing.T) {
	coords, ok := ParseCoordinates("50.45, 30.52")
	require.True(t, ok)
	assert.Equal(t, domain.Coordinates{Latitude: 50.45, Longitude: 30.52}, coords)

	coords, ok = ParseCoordinates("-90,-180")
	require.True(t, ok)
	assert.Equal(t, domain.Coordinates{Latitude: -90, Longitude: -180}, coords)

	for _, input := range []string{"95, 200", "91,0", "0,181", "Kyiv", ""} {
		_, ok := ParseCoordinates(input)
		assert.False(t, ok, "input %q", input)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: MsgRequired},
		{name: "whitespace only", input: "   \t ", expected: MsgRequired},
		{name: "too short", input: "1", expected: MsgTooShort},
		{name: "single letter", input: " K ", expected: MsgTooShort},
		{name: "digits in city", input: "Kyiv123", expected: MsgUnsupported},
		{name: "symbols", input: "Kyiv!", expected: MsgUnsupported},
		{name: "city", input: "  New   York ", expected: ""},
		{name: "city with country", input: "Paris, France", expected: ""},
		{name: "apostrophe and hyphen", input: "L'Aquila-Sud", expected: ""},
		{name: "no-break space", input: "New\u00a0York", expected: ""},
		{name: "vertical tab", input: "New\vYork", expected: ""},
		{name: "em spaces", input: "New\u2003\u2003York", expected: ""},
		{name: "no-break spaces only", input: "\u00a0\u00a0", expected: MsgRequired},
		{name: "coordinates", input: "50.45, 30.52", expected: ""},
		{name: "out of range coordinates", input: "95, 200", expected: ""},
		{name: "short coordinates", input: "1,2", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)

			if tt.expected == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Equal(t, tt.expected, err.Error())
			assert.True(t, errors.Is(err, domain.ErrValidation))
		})
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("coordinates skip geocoding", func(t *testing.T) {
		geocoder := new(MockGeocoder)

		point, err := Resolve(ctx, geocoder, "  50.45, 30.52 ")

		require.NoError(t, err)
		assert.Equal(t, "50.45, 30.52", point.Label)
		assert.Equal(t, 50.45, point.Latitude)
		assert.Equal(t, 30.52, point.Longitude)
		geocoder.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	})

	t.Run("out of range pair falls through to geocoding", func(t *testing.T) {
		geocoder := new(MockGeocoder)
		geocoder.On("Resolve", ctx, "95, 200").
			Return(domain.GeoPoint{}, &domain.WeatherError{Code: domain.CodeLocationNotFound, Message: "Location was not found"})

		_, err := Resolve(ctx, geocoder, "95, 200")

		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrLocationNotFound))
		geocoder.AssertExpectations(t)
	})

	t.Run("city is geocoded with trimmed text", func(t *testing.T) {
		geocoder := new(MockGeocoder)
		expected := domain.GeoPoint{Coordinates: domain.Coordinates{Latitude: 49.84, Longitude: 24.03}, Label: "Lviv, Ukraine"}
		geocoder.On("Resolve", ctx, "Lviv").Return(expected, nil)

		point, err := Resolve(ctx, geocoder, " Lviv ")

		require.NoError(t, err)
		assert.Equal(t, expected, point)
		geocoder.AssertExpectations(t)
	})
}
