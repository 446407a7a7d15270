package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/SweetModels/sweet-models-enterprise/internal/cache"
)

// RateLimiter is a Redis-backed fixed-window limiter keyed on the
// authenticated user id (falling back to remote addr), grounded on
// spec §6's "A cache layer holds ... rate-limit counters" and built on
// internal/cache.Client.Incr, which already implements the
// increment-then-set-ttl-on-first-hit window primitive this needs.
type RateLimiter struct {
	logger  zerolog.Logger
	cache   *cache.Client
	enabled bool
	rpm     int
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(logger zerolog.Logger, c *cache.Client, enabled bool, rpm int) *RateLimiter {
	return &RateLimiter{logger: logger, cache: c, enabled: enabled, rpm: rpm}
}

// Handler returns the rate limiting middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.enabled {
			next.ServeHTTP(w, r)
			return
		}

		key := GetUserID(r.Context())
		if key == "" {
			key = r.RemoteAddr
		}

		count, err := rl.cache.Incr(r.Context(), fmt.Sprintf("ratelimit:%s", key), time.Minute)
		if err != nil {
			rl.logger.Warn().Err(err).Msg("rate limiter: cache unavailable, failing open")
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.rpm - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.rpm))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > rl.rpm {
			w.Header().Set("Retry-After", "60")
			http.Error(w, fmt.Sprintf(`{"error":"rate_limit_exceeded","message":"rate limit of %d requests per minute exceeded"}`, rl.rpm), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
