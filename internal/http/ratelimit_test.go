package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("fourth request should be rejected")
	}
	if !rl.allow("10.0.0.2") {
		t.Fatal("other clients are independent")
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("10.0.0.1") {
		t.Fatal("new window should allow again")
	}
	if rl.rejected != 1 {
		t.Errorf("rejected = %d, want 1", rl.rejected)
	}

	now = now.Add(11 * time.Minute)
	if n := rl.cleanupStaleEntries(); n != 2 {
		t.Errorf("cleanupStaleEntries() = %d, want 2", n)
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	h := rl.middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := []int{}
	for _, method := range []string{http.MethodPost, http.MethodPost, http.MethodGet} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/api/entries", nil))
		codes = append(codes, rec.Code)
	}
	want := []int{http.StatusNoContent, http.StatusTooManyRequests, http.StatusNoContent}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes = %v, want %v", codes, want)
		}
	}
}
