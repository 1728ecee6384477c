// Package ratelimit limits how often clients may trigger searches and how
// fast the service calls each upstream. Inbound limits use a Redis sliding
// window shared by every instance; outbound limits use a local token bucket.
package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const keyPrefix = "weather-switch:ratelimit:"

// slidingWindow trims the window, then admits the request if there is room.
// Scores are milliseconds; members are unique so concurrent requests in the
// same millisecond are counted separately.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

if redis.call('ZCARD', key) < limit then
    redis.call('ZADD', key, now, member)
    redis.call('PEXPIRE', key, window)
    return 1
end

return 0
`)

// RedisRateLimiter implements ports.RateLimitService on Redis.
type RedisRateLimiter struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewRedisRateLimiter creates a limiter on client.
func NewRedisRateLimiter(client redis.UniversalClient, logger *zap.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		logger: logger,
	}
}

// Allow reports whether identifier may make another request within window.
//
// Parameters:
//   - ctx: Context for cancellation and tracing
//   - identifier: Client identifier, usually the client IP
//   - limit: Maximum requests allowed in window
//   - window: Sliding window length
//
// Returns:
//   - bool: true if the request is admitted
//   - error: Redis error; callers decide whether to fail open
func (r *RedisRateLimiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	tracer := otel.Tracer("ratelimit")
	ctx, span := tracer.Start(ctx, "RateLimit.Allow")

	defer span.End()

	span.SetAttributes(
		attribute.String("ratelimit.identifier", identifier),
		attribute.Int("ratelimit.limit", limit),
		attribute.String("ratelimit.window", window.String()),
	)

	now := time.Now().UnixMilli()
	member := uuid.NewString()

	result, err := slidingWindow.Run(ctx, r.client, []string{keyPrefix + identifier},
		limit, window.Milliseconds(), now, member).Int64()

	if err != nil {
		span.RecordError(err)

		r.logger.Error("rate limit eval error",
			zap.String("identifier", identifier),
			zap.Error(err))

		return false, err
	}

	allowed := result == 1
	span.SetAttributes(attribute.Bool("ratelimit.allowed", allowed))

	if !allowed {
		r.logger.Debug("rate limit exceeded",
			zap.String("identifier", identifier),
			zap.Int("limit", limit))
	}

	return allowed, nil
}

// Reset clears the history of identifier.
func (r *RedisRateLimiter) Reset(ctx context.Context, identifier string) error {
	tracer := otel.Tracer("ratelimit")
	ctx, span := tracer.Start(ctx, "RateLimit.Reset")

	defer span.End()

	span.SetAttributes(attribute.String("ratelimit.identifier", identifier))

	if err := r.client.Del(ctx, keyPrefix+identifier).Err(); err != nil {
		span.RecordError(err)

		r.logger.Error("rate limit reset error",
			zap.String("identifier", identifier),
			zap.Error(err))

		return err
	}

	r.logger.Debug("rate limit reset", zap.String("identifier", identifier))

	return nil
}
