package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time          { return c.t }
func (c *manualClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(rate int, per time.Duration) (*RateLimiter, *manualClock) {
	clock := &manualClock{t: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(rate, per)
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiterAllow(t *testing.T) {
	rl, clock := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("a") {
			t.Fatalf("request %d rejected inside the burst", i+1)
		}
	}
	if rl.Allow("a") {
		t.Fatal("fourth request allowed")
	}
	if !rl.Allow("b") {
		t.Fatal("independent key was throttled")
	}

	// One token comes back every 20s.
	clock.Advance(20 * time.Second)
	if !rl.Allow("a") {
		t.Fatal("refilled token not granted")
	}
	if rl.Allow("a") {
		t.Fatal("refill granted more than one token")
	}

	// Refill is capped at the burst size.
	clock.Advance(time.Hour)
	for i := 0; i < 3; i++ {
		rl.Allow("a")
	}
	if rl.Allow("a") {
		t.Fatal("bucket exceeded its capacity")
	}
}

func TestRateLimiterPrune(t *testing.T) {
	rl, clock := newTestLimiter(5, time.Minute)
	rl.Allow("old")
	clock.Advance(10 * time.Minute)
	rl.Allow("new")

	if n := rl.Prune(5 * time.Minute); n != 1 {
		t.Fatalf("Prune = %d, want 1", n)
	}
	if _, ok := rl.buckets["new"]; !ok {
		t.Error("recent bucket was pruned")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Minute)

	r := gin.New()
	r.POST("/sessions", rl.Middleware(KeyByClientIP), func(c *gin.Context) { c.Status(http.StatusCreated) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusCreated || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v, want [201 429]", codes)
	}
}
