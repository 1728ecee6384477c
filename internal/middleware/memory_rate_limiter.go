package middleware

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryRateLimiter is the single-instance ports.RateLimitService used when
// Redis is not available. Each client keeps a log of its request times inside
// the current window.
type MemoryRateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	logger *zap.Logger
	now    func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewMemoryRateLimiter creates a limiter and starts its idle-client sweeper.
// Call Close to stop the sweeper.
func NewMemoryRateLimiter(logger *zap.Logger) *MemoryRateLimiter {
	rl := &MemoryRateLimiter{
		hits:   make(map[string][]time.Time),
		logger: logger,
		now:    time.Now,
		stop:   make(chan struct{}),
	}

	go rl.sweepEvery(5 * time.Minute)

	return rl
}

// Close stops the sweeper. It is safe to call more than once.
func (rl *MemoryRateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// Allow records a request for identifier unless limit requests already fall
// inside the trailing window.
func (rl *MemoryRateLimiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := prune(rl.hits[identifier], now.Add(-window))

	if len(recent) >= limit {
		rl.hits[identifier] = recent
		rl.logger.Debug("rate limit exceeded",
			zap.String("identifier", identifier),
			zap.Int("limit", limit))

		return false, nil
	}

	rl.hits[identifier] = append(recent, now)

	return true, nil
}

// Reset forgets every request of identifier.
func (rl *MemoryRateLimiter) Reset(ctx context.Context, identifier string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.hits[identifier] = rl.hits[identifier][:0]

	return nil
}

// prune drops timestamps at or before cutoff. Timestamps are appended in
// order, so the survivors are a suffix.
func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}

	return times[i:]
}

func (rl *MemoryRateLimiter) sweepEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// sweep removes clients with no requests left.
func (rl *MemoryRateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for identifier, times := range rl.hits {
		if len(times) == 0 {
			delete(rl.hits, identifier)
		}
	}
}
