package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllowsBurstThenBlocks(t *testing.T) {
	limiter := NewRateLimiter()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !limiter.Allow("login:1.2.3.4", 3, time.Minute) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("login:1.2.3.4", 3, time.Minute) {
		t.Fatalf("fourth request should be limited")
	}
	if !limiter.Allow("login:5.6.7.8", 3, time.Minute) {
		t.Fatalf("other keys are independent")
	}

	now = now.Add(20 * time.Second)
	if !limiter.Allow("login:1.2.3.4", 3, time.Minute) {
		t.Fatalf("a token should be refilled after a third of the window")
	}
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	limiter := NewRateLimiter()
	now := time.Now()
	limiter.now = func() time.Time { return now }
	limiter.Allow("a", 1, time.Minute)
	now = now.Add(2 * limiterIdleTTL)
	limiter.Allow("b", 1, time.Minute)
	if _, ok := limiter.buckets["a"]; ok {
		t.Fatalf("idle bucket should be evicted")
	}
}

func TestRateLimitMiddlewareResponds429(t *testing.T) {
	limiter := NewRateLimiter()
	handler := RateLimit(limiter, func(r *http.Request) string { return "submit:" + ClientIP(r, true) }, 1, time.Minute)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	req := httptest.NewRequest(http.MethodPost, "/demande", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 172.16.0.1")
	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	if first.Code != http.StatusNoContent || second.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected statuses %d, %d", first.Code, second.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := ClientIP(req, true); got != "192.0.2.1" {
		t.Fatalf("unexpected ip %q", got)
	}
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	if got := ClientIP(req, true); got != "203.0.113.9" {
		t.Fatalf("unexpected forwarded ip %q", got)
	}
	if got := ClientIP(req, false); got != "192.0.2.1" {
		t.Fatalf("forwarded header honoured without a trusted proxy: %q", got)
	}
}

func TestNilRedisLimiterAllows(t *testing.T) {
	var limiter *RedisLimiter
	if !limiter.Allow("k", 1, time.Second) || NewRedisLimiter(nil, "") != nil {
		t.Fatalf("nil redis limiter must fail open")
	}
}
