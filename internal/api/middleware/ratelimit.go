package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/kiranshivaraju/crashdesk/internal/api/response"
	"github.com/kiranshivaraju/crashdesk/internal/cache"
	"github.com/kiranshivaraju/crashdesk/internal/metrics"
)

const (
	defaultRequestsPerMinute = 30
	rateWindow               = time.Minute
)

// RateLimit provides fixed-window rate limiting per client IP via Redis.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(c cache.Cache, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin}
}

// Limit rejects a client with 429 once it exceeds the per-minute budget.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		count, err := rl.cache.IncrWithExpiry(r.Context(), cache.RateLimitKey(ip), rateWindow)
		if err != nil {
			// fail open
			slog.Warn("rate limit check failed", "error", err, "client_ip", ip)
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.requestsPerMin - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > int64(rl.requestsPerMin) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rateWindow.Seconds())))
			metrics.RecordIntake(metrics.OutcomeRateLimited)
			slog.Warn("report rejected", "reason", "rate limited", "client_ip", ip)
			response.Text(w, http.StatusTooManyRequests, "rate limited")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. Proxy headers are resolved
// upstream by chi's RealIP middleware.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
