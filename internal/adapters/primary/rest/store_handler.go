// Package rest is the primary HTTP adapter. It exposes the weather store
// session as a small JSON API plus a Server-Sent Events stream of state
// snapshots.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
	"github.com/sean-rowe/weather-switch/internal/core/ports"
	"github.com/sean-rowe/weather-switch/internal/core/store"
	"github.com/sean-rowe/weather-switch/internal/middleware"
)

// StateStore is the part of store.Store the handler drives.
type StateStore interface {
	State() store.State
	SetQuery(text string)
	Search(ctx context.Context)
	SearchFor(ctx context.Context, text string)
	SetService(ctx context.Context, provider domain.Provider) error
	Subscribe(fn store.Listener) func()
}

// QueryTyper receives debounced keystrokes.
type QueryTyper interface {
	Type(text string)
}

const (
	eventBuffer       = 32
	keepaliveInterval = 30 * time.Second
)

// StoreHandler serves the store API.
type StoreHandler struct {
	store     StateStore
	typer     QueryTyper
	services  map[domain.Provider]ports.WeatherService
	logger    *zap.Logger
	keepalive time.Duration
	eventID   atomic.Int64
}

// NewStoreHandler creates the handler. typer may be nil, in which case
// debounced query updates behave like plain ones.
func NewStoreHandler(s StateStore, typer QueryTyper, services map[domain.Provider]ports.WeatherService, logger *zap.Logger) *StoreHandler {
	return &StoreHandler{
		store:     s,
		typer:     typer,
		services:  services,
		logger:    logger,
		keepalive: keepaliveInterval,
	}
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ProviderResponse describes one selectable provider.
type ProviderResponse struct {
	Key       domain.Provider `json:"key"`
	Label     string          `json:"label"`
	TimeoutMs int64           `json:"timeoutMs"`
	Retries   int             `json:"retries"`
	Selected  bool            `json:"selected"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type searchRequest struct {
	Query *string `json:"query"`
}

type providerRequest struct {
	Provider string `json:"provider"`
}

// RegisterRoutes mounts the API on api, normally the /api/v1 subrouter.
func (h *StoreHandler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/state", h.GetState).Methods(http.MethodGet)
	api.HandleFunc("/query", h.PutQuery).Methods(http.MethodPut)
	api.HandleFunc("/search", h.PostSearch).Methods(http.MethodPost)
	api.HandleFunc("/provider", h.PutProvider).Methods(http.MethodPut)
	api.HandleFunc("/providers", h.GetProviders).Methods(http.MethodGet)
	api.HandleFunc("/events", h.Events).Methods(http.MethodGet)
}

// GetState returns the current snapshot.
func (h *StoreHandler) GetState(w http.ResponseWriter, _ *http.Request) {
	h.respondWithJSON(w, http.StatusOK, h.store.State())
}

// PutQuery replaces the query. With ?debounce=true the change is treated as
// typing and a search follows after the quiet period.
//
// Response codes:
//   - 200: Resulting state
//   - 400: Malformed body (INVALID_REQUEST)
func (h *StoreHandler) PutQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if r.URL.Query().Get("debounce") == "true" && h.typer != nil {
		h.typer.Type(req.Query)
	} else {
		h.store.SetQuery(req.Query)
	}

	h.respondWithJSON(w, http.StatusOK, h.store.State())
}

// PostSearch searches the current query, or the body's query when given, and
// answers with the state the search left behind. A disconnecting client does
// not cancel the search.
//
// Response codes:
//   - 200: Resulting state, including validation or provider errors
//   - 400: Malformed body (INVALID_REQUEST)
func (h *StoreHandler) PostSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	ctx := context.WithoutCancel(r.Context())

	if req.Query != nil {
		h.store.SearchFor(ctx, *req.Query)
	} else {
		h.store.Search(ctx)
	}

	h.respondWithJSON(w, http.StatusOK, h.store.State())
}

// PutProvider switches the selected provider.
//
// Response codes:
//   - 200: Resulting state
//   - 400: Malformed body (INVALID_REQUEST) or unknown key (UNKNOWN_PROVIDER)
func (h *StoreHandler) PutProvider(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	provider, err := domain.ParseProvider(req.Provider)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "UNKNOWN_PROVIDER", err.Error())
		return
	}

	if err := h.store.SetService(context.WithoutCancel(r.Context()), provider); err != nil {
		h.logger.Error("failed to switch provider",
			zap.String("provider", req.Provider),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			zap.Error(err))

		h.respondWithError(w, http.StatusBadRequest, "UNKNOWN_PROVIDER", err.Error())

		return
	}

	h.respondWithJSON(w, http.StatusOK, h.store.State())
}

// GetProviders lists the providers in display order.
func (h *StoreHandler) GetProviders(w http.ResponseWriter, _ *http.Request) {
	selected := h.store.State().SelectedProvider
	providers := make([]ProviderResponse, 0, len(h.services))

	for _, p := range domain.Providers() {
		service, ok := h.services[p]
		if !ok {
			continue
		}

		policy := service.RequestPolicy()

		providers = append(providers, ProviderResponse{
			Key:       p,
			Label:     service.Label(),
			TimeoutMs: policy.Timeout.Milliseconds(),
			Retries:   policy.Retries,
			Selected:  p == selected,
		})
	}

	h.respondWithJSON(w, http.StatusOK, providers)
}

// Events streams every state transition as a "state" event, starting with
// the current snapshot. Slow clients lose events rather than block the store.
func (h *StoreHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondWithError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	states := make(chan store.State, eventBuffer)

	unsubscribe := h.store.Subscribe(func(st store.State) {
		select {
		case states <- st:
		default:
			h.logger.Warn("dropping state event for slow client",
				zap.String("request_id", middleware.GetRequestID(r.Context())))
		}
	})
	defer unsubscribe()

	if err := h.writeEvent(w, "state", h.store.State()); err != nil {
		h.logger.Debug("failed to send initial state event", zap.Error(err))
		return
	}

	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case st := <-states:
			if err := h.writeEvent(w, "state", st); err != nil {
				h.logger.Debug("failed to send state event", zap.Error(err))
				return
			}

			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}

			flusher.Flush()
		}
	}
}

func (h *StoreHandler) writeEvent(w io.Writer, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshaling event data: %w", err)
	}

	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", h.eventID.Add(1), event, data)

	return err
}

// decodeBody decodes a JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}

	return nil
}

func (h *StoreHandler) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *StoreHandler) respondWithError(w http.ResponseWriter, status int, code, message string) {
	h.respondWithJSON(w, status, ErrorResponse{Error: code, Message: message})
}
