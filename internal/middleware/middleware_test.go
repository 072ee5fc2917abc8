package middleware

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/wolfchat/wolfchat/internal/logging"
)

func TestSplitOrigins(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"https://a.example", []string{"https://a.example"}},
		{" https://a.example , https://b.example ", []string{"https://a.example", "https://b.example"}},
		{",,", nil},
	}
	for _, tt := range tests {
		got := SplitOrigins(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("SplitOrigins(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCORSEchoesAllowedOrigin(t *testing.T) {
	m := NewCORSMiddleware([]string{"https://a.example"})
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/howls", nil)
	req.Header.Set("Origin", "https://a.example")
	rec := httptest.NewRecorder()
	m.Handler(next).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://a.example" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("credentials header missing")
	}

	// Unknown origins get no CORS headers at all.
	req = httptest.NewRequest(http.MethodGet, "/api/howls", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	m.Handler(next).ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("Allow-Origin for unknown origin = %q", got)
	}
}

func TestRateLimiterRejectsBeyondBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2, logging.NewNop())
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := rl.Handler(next)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/howls", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("burst requests rejected: %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", statuses[2])
	}

	// A different client has its own budget.
	req := httptest.NewRequest(http.MethodGet, "/api/howls", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("fresh client = %d", rec.Code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.NewNop())
	rl.getLimiter("stale")
	time.Sleep(5 * time.Millisecond)
	rl.Cleanup(time.Millisecond)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.limiters) != 0 {
		t.Fatalf("limiters after cleanup = %d", len(rl.limiters))
	}
}
