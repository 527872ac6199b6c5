package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agromart/agromart-backend/pkg/config"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
)

type fakeRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateLimiter() *fakeRateLimiter {
	return &fakeRateLimiter{counts: map[string]int64{}}
}

func (f *fakeRateLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func loginRequest(email, remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"`+email+`","password":"secret123"}`))
	req.RemoteAddr = remote
	return req
}

func TestRateLimitAllowsUnderLimitAndKeepsBody(t *testing.T) {
	policy := NewRateLimitPolicy("login", time.Minute, PerIP(2), PerEmail(2))
	handler := RateLimit(policy, newFakeRateLimiter(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if !strings.Contains(string(body), `"email":"kisan@example.com"`) {
			t.Fatalf("unexpected body: %s", string(body))
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("kisan@example.com", "1.2.3.4:5678"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRateLimitEmailIsCaseInsensitive(t *testing.T) {
	limiter := newFakeRateLimiter()
	handler := RateLimit(NewRateLimitPolicy("login", time.Minute, PerEmail(2)), limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	emails := []string{"blocked@example.com", "Blocked@Example.com", " BLOCKED@example.com"}
	for i, email := range emails {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(email, "1.2.3.4:5678"))

		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("expected success before limit, got %d", rec.Code)
		}
		if i == 2 {
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", rec.Code)
			}
			if code := decodeErrorCode(t, rec); code != string(pkgerrors.CodeRateLimit) {
				t.Fatalf("unexpected code: %s", code)
			}
			if rec.Header().Get("Retry-After") != "60" {
				t.Fatalf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
			}
		}
	}
	for scope := range limiter.counts {
		if strings.Contains(strings.ToLower(scope), "blocked@") {
			t.Fatalf("email leaked into limiter scope %q", scope)
		}
	}
}

func TestRateLimitIPUsesFirstParseableForwardedHop(t *testing.T) {
	limiter := newFakeRateLimiter()
	policy := RegisterRateLimitPolicy(config.RateLimitConfig{RegisterWindow: time.Minute, RegisterIPLimit: 1})
	handler := RateLimit(policy, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{"email":"foo@example.com"}`))
		req.Header.Set("X-Forwarded-For", "unknown, 5.6.7.8, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i == 0 && rec.Code != http.StatusOK {
			t.Fatalf("expected success, got %d", rec.Code)
		}
		if i == 1 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
	}
	if limiter.counts["register:ip:5.6.7.8"] != 2 {
		t.Fatalf("unexpected limiter scopes %v", limiter.counts)
	}
}

func TestRateLimitPerUserSkipsAnonymous(t *testing.T) {
	limiter := newFakeRateLimiter()
	policy := CouponValidateRateLimitPolicy(config.RateLimitConfig{CouponWindow: 90 * time.Second, CouponUserLimit: 1})
	handler := RateLimit(policy, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	anonymous := httptest.NewRecorder()
	handler.ServeHTTP(anonymous, httptest.NewRequest(http.MethodPost, "/api/v1/coupons/validate", nil))
	if anonymous.Code != http.StatusOK || len(limiter.counts) != 0 {
		t.Fatalf("anonymous request should not be counted: %d %v", anonymous.Code, limiter.counts)
	}

	var last *httptest.ResponseRecorder
	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/coupons/validate", nil)
		req = req.WithContext(WithUserID(req.Context(), "user-1"))
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", last.Code)
	}
	if last.Header().Get("Retry-After") != "90" {
		t.Fatalf("expected Retry-After 90, got %q", last.Header().Get("Retry-After"))
	}
}

func TestRateLimitLimiterFailure(t *testing.T) {
	limiter := newFakeRateLimiter()
	limiter.err = errors.New("redis down")
	policy := LoginRateLimitPolicy(config.RateLimitConfig{LoginWindow: time.Minute, LoginIPLimit: 5, LoginEmailLimit: 5})
	handler := RateLimit(policy, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("a@b.in", "1.2.3.4:1"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	for name, policy := range map[string]RateLimitPolicy{
		"zero window": NewRateLimitPolicy("login", 0, PerIP(1)),
		"no limits":   NewRateLimitPolicy("login", time.Minute, PerIP(0), PerEmail(0)),
	} {
		called := false
		handler := RateLimit(policy, newFakeRateLimiter(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		handler.ServeHTTP(httptest.NewRecorder(), loginRequest("a@b.in", "1.2.3.4:1"))
		if !called {
			t.Fatalf("%s: expected passthrough", name)
		}
	}
}
