package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestTokenBucket_AllowsWithinBurst(t *testing.T) {
	b := newTokenBucket(10, 5)
	for i := 0; i < 5; i++ {
		if !b.allow() {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}
}

func TestTokenBucket_RejectsBeyondBurst(t *testing.T) {
	b := newTokenBucket(0.001, 2)
	b.allow()
	b.allow()
	if b.allow() {
		t.Error("expected rejection after burst exhausted")
	}
}

func TestRateLimit_ExceededReturns429(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})
	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	h := mw(handler)

	// First request consumes the only token
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error on first request: %v", err)
	}

	// Second request from the same client must be limited
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	rec2 := httptest.NewRecorder()
	c2 := e.NewContext(req2, rec2)
	err := h(c2)
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	if rec2.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_SeparateBucketsPerUser(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})
	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	h := mw(handler)

	makeCtx := func(userID string) echo.Context {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set("user_id", userID)
		return c
	}

	if err := h(makeCtx("user-a")); err != nil {
		t.Fatalf("unexpected error for user-a: %v", err)
	}
	// A different user gets a fresh bucket
	if err := h(makeCtx("user-b")); err != nil {
		t.Fatalf("unexpected error for user-b: %v", err)
	}
	// user-a's bucket is exhausted
	if err := h(makeCtx("user-a")); err == nil {
		t.Error("expected rate limit error for user-a's second request")
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 100 {
		t.Errorf("expected 100 rps, got %f", cfg.RequestsPerSecond)
	}
	if cfg.BurstSize != 200 {
		t.Errorf("expected burst 200, got %d", cfg.BurstSize)
	}
}
