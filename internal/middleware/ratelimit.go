package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dukerupert/motorworks/internal/domain"
)

// RateLimiterConfig configures a per-key token bucket.
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int

	// IdleTTL is how long an untouched key is remembered; the sweep runs at
	// the same interval.
	IdleTTL time.Duration

	// KeyFunc picks the bucket. Default: ActorOrClientIP.
	KeyFunc func(r *http.Request) string

	Now func() time.Time
}

func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{RequestsPerSecond: 10, BurstSize: 20}
}

// StrictRateLimiterConfig is for routes that call a payment provider.
func StrictRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 5}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one rate.Limiter per key in memory. Limits are per
// process.
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.Mutex
	visitors map[string]*visitor

	stop chan struct{}
	once sync.Once
}

// NewRateLimiter starts the idle-key sweep; call Stop to end it.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ActorOrClientIP
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = time.Minute
	}
	rl := &RateLimiter{
		config:   config,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow takes one token from key's bucket.
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.config.Now()

	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// retryAfter is the whole seconds until one token is back.
func (rl *RateLimiter) retryAfter() string {
	if rl.config.RequestsPerSecond <= 0 {
		return "60"
	}
	return strconv.Itoa(int(math.Ceil(1 / rl.config.RequestsPerSecond)))
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.config.IdleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.forgetIdle(rl.config.Now())
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) forgetIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.config.IdleTTL {
			delete(rl.visitors, key)
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Middleware answers 429 with Retry-After once the key's bucket is empty.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(rl.config.KeyFunc(r)) {
			w.Header().Set("Retry-After", rl.retryAfter())
			reject(w, r, errTooMany)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActorOrClientIP keys authenticated requests by user and anonymous ones by
// client address.
func ActorOrClientIP(r *http.Request) string {
	if domain.IsAuthenticated(r.Context()) {
		return "user:" + domain.UserIDFromContext(r.Context()).String()
	}
	return "ip:" + GetClientIP(r)
}

// GetClientIP returns the host part of RemoteAddr. Behind a proxy, RealIP
// must run first to rewrite it from the forwarding headers.
func GetClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
