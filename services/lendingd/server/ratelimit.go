package server

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"lendchain/services/lendingd/config"
)

// RateLimiter applies a per-client token bucket to mutating endpoints.
type RateLimiter struct {
	cfg      config.RateConfig
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
}

func NewRateLimiter(cfg config.RateConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg, visitors: make(map[string]*rate.Limiter)}
}

// Middleware drops requests over the per-client budget with 429. A zero
// requests-per-minute configuration disables limiting.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.cfg.RequestsPerMinute <= 0 {
			next.ServeHTTP(w, req)
			return
		}
		if !r.limiterFor(clientID(req)).Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *RateLimiter) limiterFor(id string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	limiter, ok := r.visitors[id]
	if !ok {
		burst := r.cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(r.cfg.RequestsPerMinute/60.0), burst)
		r.visitors[id] = limiter
	}
	return limiter
}

func clientID(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
