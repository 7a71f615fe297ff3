package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/wolfman30/uootd-quotes/internal/ratelimit"
)

// RejectionObserver is told about every rejected request.
type RejectionObserver interface {
	ObserveRateLimited()
}

// QuoteRateLimit counts every request against limiter and answers 429 with a
// retry hint once the caller's window is exhausted.
func QuoteRateLimit(limiter *ratelimit.Limiter, obs RejectionObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := limiter.CheckRequest(r)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				if obs != nil {
					obs.ObserveRateLimited()
				}
				w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfterSeconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":               "rate limit exceeded",
					"retry_after_seconds": decision.RetryAfterSeconds,
					"limit":               decision.Limit,
					"window_seconds":      decision.WindowSeconds,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
