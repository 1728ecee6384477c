package ports

import (
	"context"
	"encoding/json"
	"net/http"
)

// HTTPResponse is the minimal view of an upstream response the adapters need.
type HTTPResponse struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *HTTPResponse) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// DecodeJSON unmarshals the body into v.
func (r *HTTPResponse) DecodeJSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// Transport issues a single GET request. Implementations must not retry;
// the store owns the retry budget.
type Transport interface {
	Get(ctx context.Context, url string, headers map[string]string) (*HTTPResponse, error)
}

// TransportFunc adapts an ordinary function to the Transport interface.
type TransportFunc func(ctx context.Context, url string, headers map[string]string) (*HTTPResponse, error)

// Get calls f(ctx, url, headers).
func (f TransportFunc) Get(ctx context.Context, url string, headers map[string]string) (*HTTPResponse, error) {
	return f(ctx, url, headers)
}
