package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
)

// RedisCache stores records in Redis under a per-session namespace, so a new
// session never sees entries written by an earlier one.
type RedisCache struct {
	client    redis.UniversalClient
	namespace string
	logger    *zap.Logger
}

// Config holds Redis connection and performance settings.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return rdb, nil
}

// NewRedisCache creates a cache whose keys are prefixed with the session id.
//
// Parameters:
//   - client: Connected Redis client
//   - sessionID: Namespace for this session's keys
//   - logger: Zap logger for cache operations
//
// Returns:
//   - *RedisCache: Redis-backed weather cache
func NewRedisCache(client redis.UniversalClient, sessionID string, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client:    client,
		namespace: "weather-switch:" + sessionID + ":",
		logger:    logger,
	}
}

// Get returns the record stored under key, or ErrCacheMiss.
func (r *RedisCache) Get(ctx context.Context, key string) (*domain.WeatherRecord, error) {
	tracer := otel.Tracer("cache")
	ctx, span := tracer.Start(ctx, "RedisCache.Get")

	defer span.End()

	span.SetAttributes(attribute.String("cache.key", key))
	start := time.Now()
	data, err := r.client.Get(ctx, r.namespace+key).Bytes()
	duration := time.Since(start)

	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("cache.hit", false))

		r.logger.Debug("cache miss",
			zap.String("key", key),
			zap.Duration("duration", duration))

		return nil, ErrCacheMiss
	}

	if err != nil {
		span.RecordError(err)

		r.logger.Error("cache get error",
			zap.String("key", key),
			zap.Error(err))

		return nil, err
	}

	record, err := decode(data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decode cached record %q: %w", key, err)
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))

	r.logger.Debug("cache hit",
		zap.String("key", key),
		zap.Duration("duration", duration))

	return record, nil
}

// Set stores record under key without expiry.
func (r *RedisCache) Set(ctx context.Context, key string, record *domain.WeatherRecord) error {
	tracer := otel.Tracer("cache")
	ctx, span := tracer.Start(ctx, "RedisCache.Set")

	defer span.End()

	data, err := encode(record)
	if err != nil {
		return fmt.Errorf("encode record %q: %w", key, err)
	}

	span.SetAttributes(
		attribute.String("cache.key", key),
		attribute.Int("cache.value_size", len(data)),
	)

	if err := r.client.Set(ctx, r.namespace+key, data, 0).Err(); err != nil {
		span.RecordError(err)

		r.logger.Error("cache set error",
			zap.String("key", key),
			zap.Error(err))

		return err
	}

	r.logger.Debug("cache set", zap.String("key", key))

	return nil
}

// Clear removes every key of this session.
func (r *RedisCache) Clear(ctx context.Context) error {
	tracer := otel.Tracer("cache")
	ctx, span := tracer.Start(ctx, "RedisCache.Clear")

	defer span.End()

	iter := r.client.Scan(ctx, 0, r.namespace+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return err
	}

	if len(keys) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		r.logger.Error("cache clear error", zap.Error(err))

		return err
	}

	r.logger.Info("session cache cleared", zap.Int("keys", len(keys)))

	return nil
}
