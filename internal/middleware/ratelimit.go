package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

// RateLimitConfig bounds how many requests one client may make per window.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// RateLimitMiddleware rejects clients over their budget with 429. When the
// limiter itself fails the request is let through.
func RateLimitMiddleware(limiter ports.RateLimitService, cfg RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := GetClientIP(r)

			allowed, err := limiter.Allow(r.Context(), clientIP, cfg.Limit, cfg.Window)
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request",
					zap.String("client_ip", clientIP),
					zap.Error(err))

				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)

				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "RATE_LIMITED",
					"message": "Too many requests",
				})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetClientIP identifies the caller for rate limiting and access logs: the
// first valid address in X-Forwarded-For, then X-Real-IP, then the peer address.
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}

	return r.RemoteAddr
}
