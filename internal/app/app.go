// Package app wires configuration, infrastructure, providers and the weather
// store into a running HTTP server and manages their lifecycle.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/adapters/primary/rest"
	"github.com/sean-rowe/weather-switch/internal/config"
	"github.com/sean-rowe/weather-switch/internal/core/domain"
	"github.com/sean-rowe/weather-switch/internal/core/ports"
	"github.com/sean-rowe/weather-switch/internal/core/services"
	"github.com/sean-rowe/weather-switch/internal/core/store"
	"github.com/sean-rowe/weather-switch/internal/infrastructure/cache"
	"github.com/sean-rowe/weather-switch/internal/infrastructure/circuitbreaker"
	"github.com/sean-rowe/weather-switch/internal/infrastructure/database"
	"github.com/sean-rowe/weather-switch/internal/infrastructure/ratelimit"
	"github.com/sean-rowe/weather-switch/internal/infrastructure/transport"
	"github.com/sean-rowe/weather-switch/internal/middleware"
	"github.com/sean-rowe/weather-switch/internal/observability"
	"github.com/sean-rowe/weather-switch/internal/version"
)

// statsWindow is how far back /stats aggregates the audit log.
const statsWindow = 24 * time.Hour

// App manages the application lifecycle and dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	server      *http.Server
	telemetry   *observability.Telemetry
	redisClient *redis.Client
	redisCache  *cache.RedisCache
	db          *database.PostgresDB
	breakers    *circuitbreaker.Manager
	limiter     *middleware.MemoryRateLimiter
	store       *store.Store
	debouncer   *store.Debouncer

	// cancel stops searches started by the debouncer.
	cancel context.CancelFunc
}

// New loads configuration and builds the logger.
//
// Returns:
//   - *App: Application ready to Start
//   - error: Configuration or logger error
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &App{cfg: cfg, logger: logger}, nil
}

// Start builds every component and starts serving in the background.
// Optional infrastructure (telemetry export, Redis, PostgreSQL) that fails to
// come up is logged and replaced by its in-process fallback.
func (a *App) Start(ctx context.Context) error {
	if err := a.initTelemetry(ctx); err != nil {
		a.logger.Warn("failed to initialize telemetry, continuing without it", zap.Error(err))
	}

	a.initRedis(ctx)

	if err := a.initDatabase(); err != nil {
		a.logger.Warn("failed to connect to database, continuing without search audit", zap.Error(err))
	}

	registry := a.initRegistry()

	if err := a.initStore(registry); err != nil {
		return err
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.cfg.Server.Port),
		Handler:      a.setupRouter(a.newHandler(registry)),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	go func() {
		a.logger.Info("starting HTTP server",
			zap.String("port", a.cfg.Server.Port),
			zap.String("session_id", a.store.SessionID()),
			zap.String("provider", string(a.store.State().SelectedProvider)))

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down all components in reverse start order.
func (a *App) Stop() {
	a.logger.Info("shutting down application...")

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to shutdown server gracefully", zap.Error(err))
		}
	}

	if a.debouncer != nil {
		a.debouncer.Stop()
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.store != nil {
		a.store.Close()
	}

	if a.limiter != nil {
		a.limiter.Close()
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database connection", zap.Error(err))
		}
	}

	if a.redisCache != nil {
		clearCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// Cached weather never outlives its session.
		if err := a.redisCache.Clear(clearCtx); err != nil {
			a.logger.Warn("failed to clear session cache", zap.Error(err))
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("failed to close redis connection", zap.Error(err))
		}
	}

	if a.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.telemetry.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to shutdown telemetry", zap.Error(err))
		}
	}

	// Sync fails on stdout for some platforms.
	_ = a.logger.Sync()
}

// WaitForShutdown blocks until SIGINT or SIGTERM.
func (a *App) WaitForShutdown() {
	quit := make(chan os.Signal, 1)

	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	a.logger.Info("shutdown signal received")
}

func (a *App) initTelemetry(ctx context.Context) error {
	var err error

	a.telemetry, err = observability.InitTelemetry(ctx, observability.Config{
		ServiceName:    a.cfg.Observability.ServiceName,
		ServiceVersion: version.Version,
		Environment:    a.cfg.Server.Environment,
		OTLPEndpoint:   a.cfg.Observability.OTLPEndpoint,
		SampleRate:     a.cfg.Observability.SampleRate,
		Registerer:     prometheus.DefaultRegisterer,
	}, a.logger)

	return err
}

func (a *App) initRedis(ctx context.Context) {
	if !a.cfg.Redis.Enabled {
		a.logger.Info("Redis disabled, using memory-based services")
		return
	}

	client, err := cache.NewRedisClient(cache.Config{
		Addr:         a.cfg.Redis.Addr,
		Password:     a.cfg.Redis.Password,
		DB:           a.cfg.Redis.DB,
		PoolSize:     a.cfg.Redis.PoolSize,
		MinIdleConns: a.cfg.Redis.MinIdleConns,
		MaxRetries:   a.cfg.Redis.MaxRetries,
		DialTimeout:  a.cfg.Redis.DialTimeout,
		ReadTimeout:  a.cfg.Redis.ReadTimeout,
		WriteTimeout: a.cfg.Redis.WriteTimeout,
	})
	if err != nil {
		a.logger.Warn("Redis connection failed, falling back to memory-based services", zap.Error(err))
		return
	}

	a.redisClient = client
	a.logger.Info("Redis connected successfully", zap.String("addr", a.cfg.Redis.Addr))
}

func (a *App) initDatabase() error {
	if !a.cfg.Database.Enabled {
		return nil
	}

	db, err := database.NewPostgresDB(database.Config{
		Host:                  a.cfg.Database.Host,
		Port:                  a.cfg.Database.Port,
		User:                  a.cfg.Database.User,
		Password:              a.cfg.Database.Password,
		Database:              a.cfg.Database.Database,
		SSLMode:               a.cfg.Database.SSLMode,
		MaxConnections:        a.cfg.Database.MaxConnections,
		MaxIdleConnections:    a.cfg.Database.MaxIdleConnections,
		ConnectionMaxLifetime: a.cfg.Database.ConnectionMaxLifetime,
		AutoMigrate:           a.cfg.Database.AutoMigrate,
	}, a.logger.Named("database"))
	if err != nil {
		return err
	}

	if a.telemetry != nil {
		db.SetQueryRecorder(a.telemetry)
	}

	a.db = db

	return nil
}

// initRegistry layers each provider's transport as throttle, then breaker,
// then resty. The geocoder gets its own breaker.
func (a *App) initRegistry() services.Registry {
	providers := a.cfg.Providers
	base := transport.New(transport.Config{Timeout: providers.HTTPTimeout}, a.logger.Named("transport"))
	a.breakers = circuitbreaker.NewManager(a.logger.Named("circuitbreaker"))

	guard := func(name string) ports.Transport {
		var t ports.Transport = base
		if providers.CircuitBreakerEnabled {
			t = a.breakers.Wrap(name, t, circuitbreaker.DefaultConfig())
		}

		return ratelimit.Throttle(t, providers.ThrottlePerSecond, providers.ThrottleBurst)
	}

	transports := make(map[domain.Provider]ports.Transport, len(domain.Providers()))
	for _, p := range domain.Providers() {
		transports[p] = guard(string(p) + "-api")
	}

	return services.NewRegistry(services.RegistryConfig{
		Transport:        guard("geocoding-api"),
		Transports:       transports,
		OpenMeteoBaseURL: providers.OpenMeteoBaseURL,
		GeocodingBaseURL: providers.GeocodingBaseURL,
		MetNoBaseURL:     providers.MetNoBaseURL,
		MetNoUserAgent:   providers.MetNoUserAgent,
		Policies:         a.cfg.Policies(),
		Logger:           a.logger.Named("services"),
	})
}

func (a *App) initStore(registry services.Registry) error {
	// The Redis cache namespace is the store session.
	sessionID := uuid.NewString()

	deps := store.Deps{
		Services:        registry,
		Cache:           a.newCache(sessionID),
		InitialProvider: a.cfg.DefaultProvider(),
		SessionID:       sessionID,
		Logger:          a.logger.Named("store"),
	}

	// Nil pointers must not become non-nil interfaces.
	if a.telemetry != nil {
		deps.Metrics = a.telemetry
	}

	if a.db != nil {
		deps.Auditor = a.db
	}

	s, err := store.New(deps)
	if err != nil {
		return fmt.Errorf("failed to create weather store: %w", err)
	}

	a.store = s

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.debouncer = store.NewDebouncer(ctx, s, a.cfg.Store.Debounce)

	return nil
}

func (a *App) newHandler(registry services.Registry) *rest.StoreHandler {
	return rest.NewStoreHandler(a.store, a.debouncer, registry, a.logger.Named("rest"))
}

func (a *App) newCache(sessionID string) ports.WeatherCache {
	if a.cfg.Store.CacheBackend == "redis" && a.redisClient != nil {
		a.redisCache = cache.NewRedisCache(a.redisClient, sessionID, a.logger.Named("cache"))
		return a.redisCache
	}

	return cache.NewMemoryCache(a.logger.Named("cache"))
}

func (a *App) rateLimiter() ports.RateLimitService {
	if a.redisClient != nil {
		return ratelimit.NewRedisRateLimiter(a.redisClient, a.logger.Named("ratelimit"))
	}

	a.limiter = middleware.NewMemoryRateLimiter(a.logger.Named("ratelimit"))

	return a.limiter
}

func (a *App) setupRouter(handler *rest.StoreHandler) http.Handler {
	router := mux.NewRouter()

	var recorder middleware.RequestRecorder
	if a.telemetry != nil {
		recorder = a.telemetry
	}

	obs := middleware.NewObservabilityMiddleware(recorder, a.logger.Named("http"))
	router.Use(obs.TracingMiddleware)
	router.Use(obs.MetricsMiddleware)
	router.Use(obs.LoggingMiddleware)

	router.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/version", a.handleVersion).Methods(http.MethodGet)
	router.HandleFunc("/stats", a.handleStats).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RateLimitMiddleware(a.rateLimiter(), middleware.RateLimitConfig{
		Limit:  a.cfg.RateLimit.Requests,
		Window: a.cfg.RateLimit.Window,
	}, a.logger.Named("ratelimit")))

	handler.RegisterRoutes(api)

	return router
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":  "healthy",
		"service": a.cfg.Observability.ServiceName,
		"version": version.Version,
	}

	if a.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := a.db.Ping(ctx); err != nil {
			status["database"] = "unavailable"
		} else {
			status["database"] = "ok"
		}
	}

	a.respondWithJSON(w, status)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	a.respondWithJSON(w, version.Get())
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"session_id":       a.store.SessionID(),
		"circuit_breakers": a.breakers.GetStats(),
	}

	if a.db != nil {
		searches, err := a.db.GetSearchStats(r.Context(), time.Now().Add(-statsWindow))
		if err != nil {
			a.logger.Warn("failed to load search stats", zap.Error(err))
		} else {
			stats["searches"] = searches
		}
	}

	a.respondWithJSON(w, stats)
}

func (a *App) respondWithJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("failed to encode response", zap.Error(err))
	}
}
