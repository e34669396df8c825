package mcp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func okHandler(called *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called++
		w.WriteHeader(http.StatusOK)
	})
}

func TestGateRejectsMissingOrBadToken(t *testing.T) {
	var called int
	h := wrapHTTPHandler(okHandler(&called), HTTPHandlerConfig{AuthToken: "secret"})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret", http.StatusUnauthorized},
		{"empty token", "Bearer   ", http.StatusUnauthorized},
		{"wrong token", "Bearer wrong", http.StatusForbidden},
		{"lowercase scheme", "bearer secret", http.StatusOK},
		{"valid", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "http://example.com/mcp", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
	if called != 2 {
		t.Fatalf("expected 2 calls to reach the server, got %d", called)
	}
}

func TestGateWithoutConfiguredTokenRejectsAll(t *testing.T) {
	var called int
	h := wrapHTTPHandler(okHandler(&called), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "http://example.com/mcp", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden || called != 0 {
		t.Fatalf("expected 403 without a configured token, got %d (called %d)", rec.Code, called)
	}
}

func TestGateRateLimitsPerHost(t *testing.T) {
	var called int
	h := wrapHTTPHandler(okHandler(&called), HTTPHandlerConfig{AuthToken: "secret", RateLimitPerMin: 1})

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "http://example.com/mcp", nil)
		req.RemoteAddr = addr
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("10.0.0.1:1000"); rec.Code != http.StatusOK {
		t.Fatalf("expected first call to pass, got %d", rec.Code)
	}
	rec := send("10.0.0.1:2000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second call from same host to be limited, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if !strings.Contains(rec.Body.String(), "too many") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if rec := send("10.0.0.2:1000"); rec.Code != http.StatusOK {
		t.Fatalf("expected other host to pass, got %d", rec.Code)
	}
}

func TestWindowLimiterResetsEachMinute(t *testing.T) {
	now := time.Date(2024, 1, 4, 9, 0, 10, 0, time.UTC)
	l := newWindowLimiter(2, func() time.Time { return now })

	for i := 0; i < 2; i++ {
		if _, ok := l.take("h"); !ok {
			t.Fatalf("call %d should pass", i+1)
		}
	}
	wait, ok := l.take("h")
	if ok {
		t.Fatal("third call should be limited")
	}
	if wait != 50*time.Second {
		t.Fatalf("expected 50s until next window, got %s", wait)
	}

	now = now.Add(time.Minute)
	if _, ok := l.take("h"); !ok {
		t.Fatal("expected new window to allow calls")
	}
}
