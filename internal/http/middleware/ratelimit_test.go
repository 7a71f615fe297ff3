package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wolfman30/uootd-quotes/internal/ratelimit"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

type rejectCounter struct{ n int }

func (c *rejectCounter) ObserveRateLimited() { c.n++ }

func TestQuoteRateLimitRejectsAfterLimit(t *testing.T) {
	limiter := ratelimit.New(nil, ratelimit.Config{Window: time.Minute, Limit: 2}, logging.NewWithWriter(io.Discard, "error"))
	obs := &rejectCounter{}
	calls := 0
	handler := QuoteRateLimit(limiter, obs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/quote", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
	if calls != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls)
	}
	if obs.n != 1 {
		t.Fatalf("expected 1 rejection observed, got %d", obs.n)
	}
	if last.Header().Get("Retry-After") == "" || last.Header().Get("Retry-After") == "0" {
		t.Fatalf("expected positive Retry-After, got %q", last.Header().Get("Retry-After"))
	}
	if got := last.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Fatalf("expected limit header 2, got %q", got)
	}

	var body map[string]any
	if err := json.NewDecoder(last.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if retry, _ := body["retry_after_seconds"].(float64); retry <= 0 {
		t.Fatalf("expected retry_after_seconds > 0, got %v", body["retry_after_seconds"])
	}
}

func TestQuoteRateLimitSeparatesClients(t *testing.T) {
	limiter := ratelimit.New(nil, ratelimit.Config{Window: time.Minute, Limit: 1}, logging.NewWithWriter(io.Discard, "error"))
	handler := QuoteRateLimit(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, ip := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/quote", nil)
		req.Header.Set("X-Real-Ip", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected first request from %s to pass, got %d", ip, rec.Code)
		}
	}
}

func TestQuoteRateLimitNilLimiterPassesThrough(t *testing.T) {
	called := false
	handler := QuoteRateLimit(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/quote", nil))
	if !called {
		t.Fatalf("expected pass-through")
	}
}
