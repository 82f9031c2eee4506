package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/suika-web/suika/pkg/common"
	"go.uber.org/zap"
)

func TestUberRateLimiterWindow(t *testing.T) {
	limiter := NewUberRateLimiter()
	now := time.Unix(1000, 0)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		allowed, remaining, _ := limiter.Allow("k", 3, time.Minute, false)
		if !allowed {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
		if remaining != 2-i {
			t.Errorf("Expected %d remaining, got %d", 2-i, remaining)
		}
	}

	allowed, remaining, reset := limiter.Allow("k", 3, time.Minute, false)
	if allowed || remaining != 0 {
		t.Errorf("Expected fourth request to be rejected, got allowed=%v remaining=%d", allowed, remaining)
	}
	if reset != time.Minute {
		t.Errorf("Expected reset in %v, got %v", time.Minute, reset)
	}

	if allowed, _, _ := limiter.Allow("other", 3, time.Minute, false); !allowed {
		t.Error("Expected separate keys to have separate windows")
	}

	now = now.Add(time.Minute)
	if allowed, _, _ := limiter.Allow("k", 3, time.Minute, false); !allowed {
		t.Error("Expected a new window to allow requests again")
	}
}

func TestUberRateLimiterDropsExpiredBuckets(t *testing.T) {
	limiter := NewUberRateLimiter()
	now := time.Unix(1000, 0)
	limiter.now = func() time.Time { return now }

	for _, key := range []string{"a", "b", "c"} {
		limiter.Allow(key, 3, time.Minute, false)
	}
	limiter.Allow("long", 3, time.Hour, false)
	if len(limiter.buckets) != 4 {
		t.Fatalf("Expected 4 buckets, got %d", len(limiter.buckets))
	}

	now = now.Add(time.Minute)
	if allowed, _, _ := limiter.Allow("d", 3, time.Minute, false); !allowed {
		t.Fatal("Expected request to be allowed")
	}
	if len(limiter.buckets) != 2 {
		t.Errorf("Expected expired buckets to be dropped, got %d buckets", len(limiter.buckets))
	}
	if _, ok := limiter.buckets["long"]; !ok {
		t.Error("Expected a bucket within its window to be kept")
	}

	if allowed, remaining, _ := limiter.Allow("a", 3, time.Minute, false); !allowed || remaining != 2 {
		t.Errorf("Expected a dropped key to start a fresh window, got allowed=%v remaining=%d", allowed, remaining)
	}
}

func TestUberRateLimiterSmooth(t *testing.T) {
	limiter := NewUberRateLimiter()
	for i := 0; i < 3; i++ {
		if allowed, _, _ := limiter.Allow("smooth", 1000, time.Second, true); !allowed {
			t.Fatalf("Expected paced request %d to be allowed", i+1)
		}
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	config := &RateLimitConfig{BucketName: "api", Limit: 2, Window: time.Minute}
	mw := RateLimit(config, NewUberRateLimiter(), zap.NewNop())

	newReq := func() *http.Request {
		hr := httptest.NewRequest("GET", "/api", nil)
		hr.RemoteAddr = "192.0.2.1:5555"
		return hr
	}

	for i := 0; i < 2; i++ {
		_, res, _ := run(t, mw, ok("ok"), newReq())
		if res.Status() != http.StatusOK {
			t.Fatalf("Expected request %d to pass, got %d", i+1, res.Status())
		}
		if res.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("Expected X-RateLimit-Limit 2, got %q", res.Header().Get("X-RateLimit-Limit"))
		}
		if res.Header().Get("X-RateLimit-Remaining") != strconv.Itoa(1-i) {
			t.Errorf("Expected X-RateLimit-Remaining %d, got %q", 1-i, res.Header().Get("X-RateLimit-Remaining"))
		}
	}

	_, res, _ := run(t, mw, ok("ok"), newReq())
	if res.Status() != http.StatusTooManyRequests || string(res.Bytes()) != "Too Many Requests" {
		t.Errorf("Expected 429, got %d %q", res.Status(), res.Bytes())
	}
	if res.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}

	hr := newReq()
	hr.RemoteAddr = "192.0.2.2:5555"
	if _, res, _ := run(t, mw, ok("ok"), hr); res.Status() != http.StatusOK {
		t.Errorf("Expected a different client to pass, got %d", res.Status())
	}
}

func TestRateLimitCustomKey(t *testing.T) {
	var handled int
	config := &RateLimitConfig{
		BucketName: "users",
		Limit:      1,
		Window:     time.Minute,
		Strategy:   StrategyCustom,
		KeyExtractor: func(req *common.Request) (string, error) {
			user := req.Header("X-User")
			if user == "" {
				return "", errors.New("missing user")
			}
			return user, nil
		},
		ExceededHandler: func(req *common.Request, res *common.Response, next *common.Next) error {
			handled++
			res.SetStatus(http.StatusServiceUnavailable)
			return nil
		},
	}
	mw := RateLimit(config, NewUberRateLimiter(), zap.NewNop())

	withUser := func(user string) *http.Request {
		hr := httptest.NewRequest("GET", "/", nil)
		if user != "" {
			hr.Header.Set("X-User", user)
		}
		return hr
	}

	if _, res, _ := run(t, mw, ok("ok"), withUser("alice")); res.Status() != http.StatusOK {
		t.Errorf("Expected first request to pass, got %d", res.Status())
	}
	if _, res, _ := run(t, mw, ok("ok"), withUser("alice")); res.Status() != http.StatusServiceUnavailable || handled != 1 {
		t.Errorf("Expected custom exceeded handler, got %d (handled %d)", res.Status(), handled)
	}
	if _, res, _ := run(t, mw, ok("ok"), withUser("bob")); res.Status() != http.StatusOK {
		t.Errorf("Expected another user to pass, got %d", res.Status())
	}
	if _, res, _ := run(t, mw, ok("ok"), withUser("")); res.Status() != http.StatusInternalServerError {
		t.Errorf("Expected key extraction failure to return 500, got %d", res.Status())
	}
}

func TestRateLimitUsesClientIP(t *testing.T) {
	config := &RateLimitConfig{BucketName: "ip", Limit: 1, Window: time.Minute}
	chain := common.NewMiddlewareChain(
		ClientIPMiddleware(&IPConfig{Source: IPSourceXRealIP, TrustProxy: true}),
		RateLimit(config, NewUberRateLimiter(), zap.NewNop()),
		ok("ok"),
	)

	send := func(ip string) int {
		hr := httptest.NewRequest("GET", "/", nil)
		hr.Header.Set("X-Real-IP", ip)
		res := common.NewResponse()
		_ = chain.Run(common.NewRequest(hr, nil), res)
		return res.Status()
	}

	if send("198.51.100.1") != http.StatusOK {
		t.Error("Expected first request to pass")
	}
	if send("198.51.100.1") != http.StatusTooManyRequests {
		t.Error("Expected second request from the same IP to be limited")
	}
	if send("198.51.100.2") != http.StatusOK {
		t.Error("Expected a different IP to pass")
	}
}
