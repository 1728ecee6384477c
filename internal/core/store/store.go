// Package store holds the observable weather state for one session and the
// search orchestration around it: validation, caching, retry with timeout,
// provider switching and supersession of stale results.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
	"github.com/sean-rowe/weather-switch/internal/core/location"
	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

// RetrySuffix is appended to the last failure message once the retry budget is spent.
const RetrySuffix = ". Try retry or switch provider."

// auditTimeout bounds a single audit write.
const auditTimeout = 5 * time.Second

// State is a snapshot of the store. Error is empty when there is no error.
type State struct {
	SelectedProvider domain.Provider       `json:"selectedService"`
	Query            string                `json:"query"`
	IsLoading        bool                  `json:"isLoading"`
	Weather          *domain.WeatherRecord `json:"weather"`
	Error            string                `json:"error"`
}

// Listener receives every state transition.
type Listener func(State)

// Deps are the collaborators a Store needs. Only Services is required.
type Deps struct {
	Services        map[domain.Provider]ports.WeatherService
	Cache           ports.WeatherCache
	Metrics         Metrics
	Auditor         ports.SearchAuditor
	Logger          *zap.Logger
	InitialProvider domain.Provider
	SessionID       string
}

type subscription struct {
	id uint64
	fn Listener
}

// Store is safe for use by multiple goroutines.
type Store struct {
	services  map[domain.Provider]ports.WeatherService
	cache     ports.WeatherCache
	metrics   Metrics
	auditor   ports.SearchAuditor
	logger    *zap.Logger
	sessionID string

	// mu guards state, version and listeners.
	mu        sync.Mutex
	state     State
	version   uint64
	listeners []subscription
	nextID    uint64

	// emitMu serialises patch and fan-out so listeners observe transitions in order.
	emitMu sync.Mutex

	audits sync.WaitGroup
}

// New creates a store in its initial state.
//
// Parameters:
//   - deps: Services per provider plus optional cache, metrics, auditor and logger
//
// Returns:
//   - *Store: Store with the initial provider selected, empty query, no weather and no error
//   - error: Returned when a provider has no service or the initial provider is unknown
func New(deps Deps) (*Store, error) {
	for _, p := range domain.Providers() {
		if deps.Services[p] == nil {
			return nil, fmt.Errorf("no weather service registered for provider %q", p)
		}
	}

	initial := deps.InitialProvider
	if initial == "" {
		initial = domain.DefaultProvider
	}

	if !initial.Valid() {
		return nil, fmt.Errorf("unknown initial provider %q", initial)
	}

	s := &Store{
		services:  deps.Services,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		auditor:   deps.Auditor,
		logger:    deps.Logger,
		sessionID: deps.SessionID,
		state:     State{SelectedProvider: initial},
	}

	if s.cache == nil {
		s.cache = newMapCache()
	}

	if s.metrics == nil {
		s.metrics = NopMetrics{}
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	if s.sessionID == "" {
		s.sessionID = uuid.NewString()
	}

	return s, nil
}

// SessionID identifies this store instance in logs and audit rows.
func (s *Store) SessionID() string {
	return s.sessionID
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Subscribe registers fn for every subsequent transition. Listeners run
// synchronously in registration order and must not call SetQuery, Search,
// SearchFor or SetService on the same goroutine.
//
// Returns:
//   - func(): Removes the listener; safe to call more than once
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// SetQuery replaces the query and clears the error. It never fetches.
func (s *Store) SetQuery(text string) {
	s.update(func(st *State) bool {
		st.Query = text
		st.Error = ""
		return true
	})
}

// Search runs a search for the current query.
func (s *Store) Search(ctx context.Context) {
	s.search(ctx, nil)
}

// SearchFor runs a search for text instead of the current query.
func (s *Store) SearchFor(ctx context.Context, text string) {
	s.search(ctx, &text)
}

// SetService selects provider and, when the query is not blank, searches again
// against it. Selecting the current provider does nothing.
//
// Returns:
//   - error: Only for a provider outside the enumerated set; state is untouched in that case
func (s *Store) SetService(ctx context.Context, provider domain.Provider) error {
	if !provider.Valid() {
		return fmt.Errorf("unknown weather provider %q", provider)
	}

	var query string

	changed := s.update(func(st *State) bool {
		if st.SelectedProvider == provider {
			return false
		}

		st.SelectedProvider = provider
		st.Error = ""
		query = st.Query

		return true
	})

	if !changed {
		return nil
	}

	s.logger.Info("weather provider switched",
		zap.String("session_id", s.sessionID),
		zap.String("provider", string(provider)))

	if location.Normalize(query) != "" {
		s.Search(ctx)
	}

	return nil
}

// Close waits for pending audit writes.
func (s *Store) Close() {
	s.audits.Wait()
}

func (s *Store) search(ctx context.Context, input *string) {
	start := time.Now()

	s.mu.Lock()
	raw := s.state.Query
	if input != nil {
		raw = *input
	}

	s.version++
	version := s.version
	provider := s.state.SelectedProvider
	s.mu.Unlock()

	query := location.Normalize(raw)

	audit := domain.SearchAudit{
		SessionID: s.sessionID,
		RequestID: uuid.NewString(),
		Provider:  provider,
		Query:     query,
	}

	defer func() {
		audit.Duration = time.Since(start)
		audit.FinishedAt = time.Now().UTC()
		s.metrics.RecordSearch(ctx, provider, audit.Outcome, audit.Duration)
		s.recordAudit(audit)
	}()

	if err := location.Validate(query); err != nil {
		audit.Outcome = domain.OutcomeInvalid
		audit.ErrorMessage = err.Error()

		if !s.updateIfCurrent(version, func(st *State) {
			st.Query = query
			st.Weather = nil
			st.Error = err.Error()
			st.IsLoading = false
		}) {
			audit.Outcome = domain.OutcomeStale
		}

		return
	}

	if !s.updateIfCurrent(version, func(st *State) { st.Query = query }) {
		audit.Outcome = domain.OutcomeStale
		return
	}

	key := CacheKey(provider, query)

	if cached := s.lookup(ctx, provider, key); cached != nil {
		audit.Outcome = domain.OutcomeCacheHit
		audit.CacheHit = true

		if !s.updateIfCurrent(version, func(st *State) {
			st.Weather = cached
			st.Error = ""
			st.IsLoading = false
		}) {
			audit.Outcome = domain.OutcomeStale
		}

		return
	}

	service := s.services[provider]

	if !s.updateIfCurrent(version, func(st *State) {
		st.IsLoading = true
		st.Error = ""
	}) {
		audit.Outcome = domain.OutcomeStale
		return
	}

	record, attempts, err := s.fetchWithRetry(ctx, service, query)
	audit.Attempts = attempts

	if err != nil {
		audit.Outcome = domain.OutcomeFailed
		audit.ErrorMessage = err.Error()

		applied := s.updateIfCurrent(version, func(st *State) {
			st.IsLoading = false
			st.Error = err.Error() + RetrySuffix
		})

		if !applied {
			audit.Outcome = domain.OutcomeStale
			return
		}

		s.logger.Warn("weather search failed",
			zap.String("session_id", s.sessionID),
			zap.String("request_id", audit.RequestID),
			zap.String("provider", string(provider)),
			zap.String("query", query),
			zap.String("code", domain.ErrorCode(err)),
			zap.Int("attempts", attempts),
			zap.Error(err))

		return
	}

	if !s.updateIfCurrent(version, func(st *State) {
		st.Weather = record
		st.IsLoading = false
		st.Error = ""
	}) {
		audit.Outcome = domain.OutcomeStale

		s.logger.Debug("discarding superseded weather result",
			zap.String("session_id", s.sessionID),
			zap.String("request_id", audit.RequestID))

		return
	}

	audit.Outcome = domain.OutcomeSuccess

	if err := s.cache.Set(ctx, key, record); err != nil {
		s.logger.Warn("failed to cache weather record", zap.String("key", key), zap.Error(err))
	}
}

// lookup returns nil on a miss. Cache failures are logged and count as a miss.
func (s *Store) lookup(ctx context.Context, provider domain.Provider, key string) *domain.WeatherRecord {
	cached, err := s.cache.Get(ctx, key)

	switch {
	case err == nil && cached != nil:
		s.metrics.RecordCacheHit(ctx, provider)
		return cached
	case err != nil && !errors.Is(err, ports.ErrCacheMiss):
		s.logger.Warn("weather cache lookup failed", zap.String("key", key), zap.Error(err))
	}

	s.metrics.RecordCacheMiss(ctx, provider)

	return nil
}

// update applies fn under the state lock and notifies listeners when fn reports a change.
func (s *Store) update(fn func(*State) bool) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()

	if !fn(&s.state) {
		s.mu.Unlock()
		return false
	}

	snapshot := s.state
	listeners := make([]subscription, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, sub := range listeners {
		sub.fn(snapshot)
	}

	return true
}

// updateIfCurrent applies fn only when no search has started since version was claimed.
func (s *Store) updateIfCurrent(version uint64, fn func(*State)) bool {
	return s.update(func(st *State) bool {
		if s.version != version {
			return false
		}

		fn(st)

		return true
	})
}

func (s *Store) recordAudit(audit domain.SearchAudit) {
	if s.auditor == nil {
		return
	}

	s.audits.Add(1)

	go func() {
		defer s.audits.Done()

		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()

		if err := s.auditor.RecordSearch(ctx, audit); err != nil {
			s.logger.Warn("failed to record search audit",
				zap.String("request_id", audit.RequestID),
				zap.Error(err))
		}
	}()
}

// CacheKey builds the cache key for a provider and a normalized query.
func CacheKey(provider domain.Provider, query string) string {
	return string(provider) + ":" + strings.ToLower(query)
}
