package domain

import "errors"

// Error codes for the failure taxonomy surfaced by the store.
const (
	CodeValidation        = "VALIDATION"
	CodeLocationNotFound  = "LOCATION_NOT_FOUND"
	CodeGeocodingFailed   = "GEOCODING_FAILED"
	CodeTransportFailed   = "TRANSPORT_FAILED"
	CodeMalformedResponse = "MALFORMED_RESPONSE"
	CodeTimeout           = "TIMEOUT"
)

// WeatherError represents domain-specific errors that can occur during weather operations.
// Message is shown to the user verbatim, so Error returns it without decoration;
// the code and cause are available for programmatic handling and logging.
type WeatherError struct {
	// Code identifies the type of error for programmatic handling
	Code string

	// Message provides the user-facing error description
	Message string

	// Cause wraps an underlying error if applicable
	Cause error
}

// Error implements the error interface for WeatherError.
func (e *WeatherError) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *WeatherError) Unwrap() error {
	return e.Cause
}

// Is matches another WeatherError carrying the same code.
func (e *WeatherError) Is(target error) bool {
	t, ok := target.(*WeatherError)
	if !ok {
		return false
	}

	return t.Code == e.Code
}

// Sentinels usable with errors.Is; only the code is compared.
var (
	ErrValidation        = &WeatherError{Code: CodeValidation}
	ErrLocationNotFound  = &WeatherError{Code: CodeLocationNotFound}
	ErrGeocodingFailed   = &WeatherError{Code: CodeGeocodingFailed}
	ErrTransportFailed   = &WeatherError{Code: CodeTransportFailed}
	ErrMalformedResponse = &WeatherError{Code: CodeMalformedResponse}
	ErrTimeout           = &WeatherError{Code: CodeTimeout}
)

// NewValidationError builds a user-input validation failure.
func NewValidationError(message string) *WeatherError {
	return &WeatherError{Code: CodeValidation, Message: message}
}

// NewTransportError builds the provider-named failure for a non-success upstream call.
func NewTransportError(p Provider, cause error) *WeatherError {
	return &WeatherError{
		Code:    CodeTransportFailed,
		Message: p.Label() + " weather request failed",
		Cause:   cause,
	}
}

// NewMalformedResponseError builds the provider-named failure for an unexpected payload shape.
func NewMalformedResponseError(p Provider, cause error) *WeatherError {
	return &WeatherError{
		Code:    CodeMalformedResponse,
		Message: "Malformed " + p.Label() + " response",
		Cause:   cause,
	}
}

// NewTimeoutError builds the synthetic failure raised when an attempt exceeds its policy.
func NewTimeoutError(policy RequestPolicy) *WeatherError {
	return &WeatherError{Code: CodeTimeout, Message: policy.TimeoutMessage()}
}

// ErrorCode extracts the WeatherError code from err, or "UNKNOWN".
func ErrorCode(err error) string {
	var we *WeatherError
	if errors.As(err, &we) {
		return we.Code
	}

	return "UNKNOWN"
}
