package api

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/constants"
)

// rateLimit allows limit requests per client IP per window. A non-positive
// limit disables the middleware.
func rateLimit(limit int, window time.Duration, resolver *ClientIPResolver) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	retryAfter := strconv.Itoa(retryAfterSeconds(window))
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(resolver.KeyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("rate limit exceeded", "path", r.URL.Path, "client_ip", resolver.Resolve(r))
			w.Header().Set("Retry-After", retryAfter)
			writeError(w, http.StatusTooManyRequests, constants.ErrCodeRateLimited, "Too many requests, please try again later")
		}),
	)
}

func retryAfterSeconds(window time.Duration) int {
	if window <= 0 {
		return 1
	}
	return int(math.Ceil(window.Seconds()))
}
