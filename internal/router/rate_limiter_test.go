package router

import (
	"testing"
	"time"
)

func fixedClock(start time.Time) (*time.Time, func() time.Time) {
	now := start
	return &now, func() time.Time { return now }
}

// TestRateLimiter_ExactLimits tests exact rate limiting behavior
func TestRateLimiter_ExactLimits(t *testing.T) {
	limiter := NewRateLimiter(100, 0)
	_, limiter.now = fixedClock(time.Unix(1_700_000_000, 0))

	for i := 0; i < 100; i++ {
		if !limiter.Allow("conn-1") {
			t.Fatalf("message %d should be allowed within the burst", i+1)
		}
	}
	if limiter.Allow("conn-1") {
		t.Error("101st message should be denied")
	}
	if !limiter.Allow("conn-2") {
		t.Error("other connections have their own bucket")
	}
}

// TestRateLimiter_Refill tests that tokens come back over time
func TestRateLimiter_Refill(t *testing.T) {
	limiter := NewRateLimiter(60, 1)
	now, clock := fixedClock(time.Unix(1_700_000_000, 0))
	limiter.now = clock

	if !limiter.Allow("c") {
		t.Fatal("first message should be allowed")
	}
	if limiter.Allow("c") {
		t.Fatal("burst of 1 should deny the second message")
	}

	*now = now.Add(time.Second)
	if !limiter.Allow("c") {
		t.Error("one token should refill after a second at 60/min")
	}
}

// TestRateLimiter_CleanupAndRemove tests bucket eviction
func TestRateLimiter_CleanupAndRemove(t *testing.T) {
	limiter := NewRateLimiter(0, 0)
	now, clock := fixedClock(time.Unix(1_700_000_000, 0))
	limiter.now = clock

	limiter.Allow("stale")
	*now = now.Add(10 * time.Minute)
	limiter.Allow("fresh")

	if removed := limiter.Cleanup(5 * time.Minute); removed != 1 {
		t.Errorf("expected 1 stale bucket removed, got %d", removed)
	}
	if limiter.Len() != 1 {
		t.Errorf("expected 1 bucket left, got %d", limiter.Len())
	}

	limiter.Remove("fresh")
	limiter.Remove("fresh")
	if limiter.Len() != 0 {
		t.Errorf("expected no buckets, got %d", limiter.Len())
	}
}
