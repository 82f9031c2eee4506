package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/suika-web/suika/pkg/common"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// Rate limit key strategies.
const (
	StrategyIP     = "ip"
	StrategyCustom = "custom"
)

// RateLimitConfig defines a rate limit.
type RateLimitConfig struct {
	// BucketName namespaces the keys of this limit so several limits can share a limiter.
	BucketName string

	// Limit is the number of requests allowed per Window.
	Limit int

	// Window is the counting window.
	Window time.Duration

	// Strategy selects the key: StrategyIP (default) or StrategyCustom.
	Strategy string

	// KeyExtractor derives the key for StrategyCustom.
	KeyExtractor func(req *common.Request) (string, error)

	// Smooth spaces allowed requests evenly across the window instead of
	// letting them through in a burst.
	Smooth bool

	// ExceededHandler answers rejected requests. Defaults to 429 "Too Many Requests".
	ExceededHandler common.Handler
}

// RateLimiter decides whether a request under key is allowed.
type RateLimiter interface {
	// Allow records a request and returns whether it is allowed, the number of
	// requests left in the window and the time until the window resets.
	Allow(key string, limit int, window time.Duration, smooth bool) (bool, int, time.Duration)
}

type bucket struct {
	start  time.Time
	window time.Duration
	count  int
	pacer  ratelimit.Limiter
}

// UberRateLimiter counts requests per key in fixed windows and, for smoothed
// limits, paces the allowed ones with go.uber.org/ratelimit. Buckets whose
// window has expired are swept at most once per window.
type UberRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

// NewUberRateLimiter creates a new UberRateLimiter
func NewUberRateLimiter() *UberRateLimiter {
	return &UberRateLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

// Allow implements RateLimiter.
func (u *UberRateLimiter) Allow(key string, limit int, window time.Duration, smooth bool) (bool, int, time.Duration) {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	now := u.now()

	u.mu.Lock()
	if now.Sub(u.lastSweep) >= window {
		u.sweep(now)
	}
	b, ok := u.buckets[key]
	if !ok {
		b = &bucket{start: now, window: window}
		if smooth {
			b.pacer = ratelimit.New(limit, ratelimit.Per(window))
		}
		u.buckets[key] = b
	}
	if now.Sub(b.start) >= window {
		b.start = now
		b.count = 0
	}
	b.window = window
	b.count++
	count := b.count
	reset := b.start.Add(window).Sub(now)
	pacer := b.pacer
	u.mu.Unlock()

	if count > limit {
		return false, 0, reset
	}
	if pacer != nil {
		pacer.Take()
	}
	return true, limit - count, reset
}

// sweep drops buckets whose window has ended. u.mu must be held.
func (u *UberRateLimiter) sweep(now time.Time) {
	for key, b := range u.buckets {
		if now.Sub(b.start) >= b.window {
			delete(u.buckets, key)
		}
	}
	u.lastSweep = now
}

// RateLimit is a middleware that rejects requests over the configured limit
// without running the rest of the chain.
func RateLimit(config *RateLimitConfig, limiter RateLimiter, logger *zap.Logger) Middleware {
	return Func(func(req *common.Request, res *common.Response, next *common.Next) error {
		if config == nil {
			return next.Proceed(req, res)
		}

		key, err := rateLimitKey(config, req)
		if err != nil {
			logger.Error("Failed to extract rate limit key",
				zap.Error(err),
				zap.String("method", req.Method()),
				zap.String("path", req.Path()),
			)
			res.SetStatus(http.StatusInternalServerError)
			res.BodyString("Internal Server Error")
			return nil
		}

		allowed, remaining, reset := limiter.Allow(config.BucketName+":"+key, config.Limit, config.Window, config.Smooth)

		h := res.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))

		if allowed {
			return next.Proceed(req, res)
		}

		h.Set("Retry-After", strconv.Itoa(int(math.Ceil(reset.Seconds()))))
		logger.Warn("Rate limit exceeded",
			zap.String("method", req.Method()),
			zap.String("path", req.Path()),
			zap.String("key", key),
			zap.Int("limit", config.Limit),
		)
		if config.ExceededHandler != nil {
			return config.ExceededHandler(req, res, common.Terminal())
		}
		res.SetStatus(http.StatusTooManyRequests)
		res.BodyString("Too Many Requests")
		return nil
	})
}

func rateLimitKey(config *RateLimitConfig, req *common.Request) (string, error) {
	if config.Strategy == StrategyCustom && config.KeyExtractor != nil {
		return config.KeyExtractor(req)
	}
	if ip := ClientIP(req); ip != "" {
		return ip, nil
	}
	return extractClientIP(req, DefaultIPConfig()), nil
}
