package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit limits requests per client IP.
func RateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitExceeded(windowLength)),
	)
}

// UserRateLimit limits requests per authenticated user, falling back to
// the client IP. It must run after Auth.
func UserRateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if userID := GetUserID(r.Context()); userID != "" {
				return "user:" + userID, nil
			}
			return httprate.KeyByRealIP(r)
		}),
		httprate.WithLimitHandler(limitExceeded(windowLength)),
	)
}

func limitExceeded(window time.Duration) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(window.Seconds()))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", retryAfter)
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	}
}
