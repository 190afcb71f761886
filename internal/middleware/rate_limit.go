package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 10000
	idleBucketTTL     = 10 * time.Minute
)

// RateLimit is a token bucket per client IP. Idle buckets age out of the LRU.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	buckets := lru.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, idleBucketTTL)
	// expirable.LRU has no get-or-add, so creation is serialized here
	var mu sync.Mutex
	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		lim, ok := buckets.Get(ip)
		if !ok {
			lim = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
		// re-adding refreshes the idle TTL
		buckets.Add(ip, lim)
		return lim
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if ip == "" {
				ip = "unknown"
			}

			if !limiterFor(ip).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   http.StatusText(http.StatusTooManyRequests),
					"message": "Too many requests, slow down",
					"code":    "RATE_LIMITED",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
