// Package ratelimit provides per-client token bucket rate limiting.
package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pendergraft/questhub/internal/middleware/realip"
	"github.com/pendergraft/questhub/internal/observability/metrics"
)

// Config describes one rate limit budget
type Config struct {
	// Name labels the budget in metrics
	Name           string
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	// CleanupMinutes is how long an idle client is remembered
	CleanupMinutes int
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per client IP
type Limiter struct {
	name  string
	limit rate.Limit
	burst int
	idle  time.Duration

	mu      sync.Mutex
	clients map[string]*client

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a Limiter and starts its eviction loop. Call Stop to end it.
func New(cfg Config) *Limiter {
	idle := time.Duration(cfg.CleanupMinutes) * time.Minute
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	l := &Limiter{
		name:    cfg.Name,
		limit:   rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:   burst,
		idle:    idle,
		clients: make(map[string]*client),
		stop:    make(chan struct{}),
	}
	go l.evictLoop()
	return l
}

// Stop ends the eviction loop. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) evictLoop() {
	ticker := time.NewTicker(l.idle)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evict(time.Now())
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := now.Add(-l.idle)
	for ip, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}

// Allow reports whether ip may make another request now.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	c, ok := l.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = time.Now()
	l.mu.Unlock()
	return c.limiter.Allow()
}

// retryAfter is the time until one token is refilled, in whole seconds.
func (l *Limiter) retryAfter() int {
	if l.limit <= 0 {
		return 60
	}
	return int(math.Ceil(1 / float64(l.limit)))
}

// exempt paths are probed by orchestrators and never limited
var exempt = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Handler returns middleware enforcing the budget per client IP.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exempt[r.URL.Path] || l.Allow(realip.GetClientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}

		metrics.RateLimited(l.name)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    "RATE_LIMIT_EXCEEDED",
				"message": "Too many requests. Please try again later.",
			},
		})
	})
}

// Middleware builds a Limiter from cfg, or a pass-through when disabled.
// The returned stop function ends the eviction loop.
func Middleware(cfg Config) (func(http.Handler) http.Handler, func()) {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, func() {}
	}
	l := New(cfg)
	return l.Handler, l.Stop
}
