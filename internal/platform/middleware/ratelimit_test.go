package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
)

// limited wires the rate limiter in front of a trivial handler and returns
// a function that issues one request from the given client IP.
func limited(cfg RateLimitConfig) func(ip string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	h := RateLimit(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return func(ip string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
		if ip != "" {
			req.Header.Set("X-Real-IP", ip)
		}
		rec := httptest.NewRecorder()
		return rec, h(e.NewContext(req, rec))
	}
}

func TestRateLimit_WithinBurst(t *testing.T) {
	do := limited(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})

	for i := 0; i < 5; i++ {
		rec, err := do("")
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: X-RateLimit-Limit = %q, want \"10\"", i+1, got)
		}
	}
}

func TestRateLimit_RejectsBeyondBurst(t *testing.T) {
	do := limited(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})

	for i := 0; i < 2; i++ {
		if _, err := do(""); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i+1, err)
		}
	}

	_, err := do("")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
}

func TestRateLimit_RetryAfterHeader(t *testing.T) {
	do := limited(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	do("")

	rec, err := do("")
	if err == nil {
		t.Fatal("expected error for rate-limited request")
	}

	retryAfter := rec.Header().Get("Retry-After")
	if retryAfter == "" {
		t.Fatal("expected Retry-After header to be set")
	}
	if v, err := strconv.Atoi(retryAfter); err != nil || v < 1 {
		t.Errorf("Retry-After = %q, want an integer >= 1", retryAfter)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want \"0\"", got)
	}
}

func TestRateLimit_PerClientBuckets(t *testing.T) {
	do := limited(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})

	if _, err := do("10.0.0.1"); err != nil {
		t.Fatalf("client-a first request: unexpected error: %v", err)
	}
	if _, err := do("10.0.0.1"); err == nil {
		t.Fatal("client-a second request: expected rate limit error")
	}
	// A different client IP has its own bucket.
	if _, err := do("10.0.0.2"); err != nil {
		t.Fatalf("client-b first request: unexpected error: %v", err)
	}
}

func TestRateLimit_DefaultConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 100 {
		t.Errorf("expected RequestsPerSecond 100, got %f", cfg.RequestsPerSecond)
	}
	if cfg.BurstSize != 200 {
		t.Errorf("expected BurstSize 200, got %d", cfg.BurstSize)
	}
}

func TestTokenBucket_RetryAfterWithZeroRate(t *testing.T) {
	b := newTokenBucket(0, 1)
	b.allow()
	if ra := b.retryAfter(); ra != 1 {
		t.Errorf("expected retryAfter 1 for zero rate, got %d", ra)
	}
}

func TestRateLimiterStore_ReusesBuckets(t *testing.T) {
	store := newRateLimiterStore(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})

	b1 := store.getBucket("key1")
	if b1 == nil {
		t.Fatal("expected non-nil bucket")
	}
	if b2 := store.getBucket("key1"); b1 != b2 {
		t.Error("expected same bucket instance for same key")
	}
	if b3 := store.getBucket("key2"); b1 == b3 {
		t.Error("expected different bucket for different key")
	}
}
