package shield

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig defines the rate limit for a single endpoint.
type RateLimitConfig struct {
	MaxRequests   int  `yaml:"max_requests"`
	WindowSeconds int  `yaml:"window_seconds"`
	Enabled       bool `yaml:"enabled"`
}

type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// RateLimiter provides per-IP, per-endpoint fixed-window rate limiting.
// Rules are keyed by "METHOD /path", e.g. "POST /solve". Endpoints without
// an enabled rule are not limited.
type RateLimiter struct {
	rules   map[string]RateLimitConfig
	buckets sync.Map
	mu      sync.RWMutex
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter with the given rules.
func NewRateLimiter(rules map[string]RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{now: time.Now}
	rl.SetRules(rules)
	return rl
}

// SetRules replaces the rule set. Existing buckets keep their window.
func (rl *RateLimiter) SetRules(rules map[string]RateLimitConfig) {
	copied := make(map[string]RateLimitConfig, len(rules))
	for k, v := range rules {
		copied[k] = v
	}
	rl.mu.Lock()
	rl.rules = copied
	rl.mu.Unlock()
}

// StartGC drops expired buckets every interval until done is closed.
func (rl *RateLimiter) StartGC(interval time.Duration, done <-chan struct{}) {
	tick := time.NewTicker(interval)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				rl.gc()
			}
		}
	}()
}

func (rl *RateLimiter) gc() {
	now := rl.now()
	rl.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		expired := now.After(b.resetAt)
		b.mu.Unlock()
		if expired {
			rl.buckets.Delete(key)
		}
		return true
	})
}

// allow reports whether the request may proceed and, when it may not, how
// long until the window resets.
func (rl *RateLimiter) allow(ip, endpoint string) (bool, time.Duration) {
	rl.mu.RLock()
	cfg, ok := rl.rules[endpoint]
	rl.mu.RUnlock()

	if !ok || !cfg.Enabled || cfg.MaxRequests <= 0 {
		return true, 0
	}
	window := time.Duration(cfg.WindowSeconds) * time.Second
	if window <= 0 {
		window = time.Minute
	}

	now := rl.now()
	val, _ := rl.buckets.LoadOrStore(ip+":"+endpoint, &bucket{resetAt: now.Add(window)})
	b := val.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()
	if now.After(b.resetAt) {
		b.count = 0
		b.resetAt = now.Add(window)
	}
	b.count++
	if b.count <= cfg.MaxRequests {
		return true, 0
	}
	return false, b.resetAt.Sub(now)
}

// Middleware is the HTTP middleware that enforces rate limits with a 429
// JSON response.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.Method + " " + r.URL.Path
		ip := ExtractIP(r)

		ok, wait := rl.allow(ip, endpoint)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		GetLogger(r.Context()).Warn("ratelimit: request blocked", "ip", ip, "endpoint", endpoint)

		secs := int(wait.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		if err := json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"}); err != nil {
			slog.Debug("ratelimit: write response", "error", err)
		}
	})
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
