package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllowsBurstThenDenies(t *testing.T) {
	rl := NewRateLimiter(LimiterConfig{
		RatePerInterval: 1,
		Interval:        time.Minute,
		Burst:           3,
	})

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/fraud/check", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d within burst got %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/fraud/check", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("request past burst got %d, want 429", rec.Code)
	}
}

func TestRateLimiterKeysByClientIP(t *testing.T) {
	rl := NewRateLimiter(LimiterConfig{
		RatePerInterval: 1,
		Interval:        time.Minute,
		Burst:           1,
	})
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	handler.ServeHTTP(first, req)

	exhausted := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5678"
	handler.ServeHTTP(exhausted, req)
	if exhausted.Code != http.StatusTooManyRequests {
		t.Fatalf("same ip different port got %d, want 429", exhausted.Code)
	}

	other := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:1234"
	handler.ServeHTTP(other, req)
	if other.Code != http.StatusOK {
		t.Fatalf("different ip got %d, want 200", other.Code)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("clientIP = %q, want 203.0.113.9", got)
	}
}

func TestTokenBucketRefills(t *testing.T) {
	b := newBucket(1000, time.Second, 1)
	if !b.allow(1) {
		t.Fatal("fresh bucket denied")
	}
	if b.allow(1) {
		t.Fatal("empty bucket allowed")
	}
	time.Sleep(5 * time.Millisecond)
	if !b.allow(1) {
		t.Fatal("bucket did not refill")
	}
}
