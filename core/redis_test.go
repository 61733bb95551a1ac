package core

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*LoginLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLoginLimiter(client, limit, window), mr
}

func TestLoginLimiterWithinLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !limiter.Allow(ctx, "10.0.0.1") {
			t.Fatalf("attempt %d denied within limit", i+1)
		}
	}
	if limiter.Allow(ctx, "10.0.0.1") {
		t.Fatal("attempt over limit was allowed")
	}
}

func TestLoginLimiterPerKey(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if !limiter.Allow(ctx, "10.0.0.1") {
		t.Fatal("first client first attempt denied")
	}
	if limiter.Allow(ctx, "10.0.0.1") {
		t.Fatal("first client second attempt allowed")
	}
	// An unrelated client is unaffected.
	if !limiter.Allow(ctx, "10.0.0.2") {
		t.Fatal("second client first attempt denied")
	}
}

func TestLoginLimiterWindowExpiry(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if !limiter.Allow(ctx, "10.0.0.1") {
		t.Fatal("first attempt denied")
	}
	if limiter.Allow(ctx, "10.0.0.1") {
		t.Fatal("second attempt allowed")
	}

	mr.FastForward(2 * time.Minute)

	if !limiter.Allow(ctx, "10.0.0.1") {
		t.Fatal("attempt after window expiry denied")
	}
}

func TestLoginLimiterDisabled(t *testing.T) {
	limiter, _ := newTestLimiter(t, 0, time.Minute)
	for i := 0; i < 100; i++ {
		if !limiter.Allow(context.Background(), "10.0.0.1") {
			t.Fatal("disabled limiter denied an attempt")
		}
	}
}

func TestLoginLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	limiter := NewLoginLimiter(client, 1, time.Minute)

	mr.Close()

	// Redis down: throttling is skipped rather than blocking all logins.
	if !limiter.Allow(context.Background(), "10.0.0.1") {
		t.Fatal("limiter did not fail open with redis unavailable")
	}
}

func TestLoginLimiterNil(t *testing.T) {
	var limiter *LoginLimiter
	if !limiter.Allow(context.Background(), "10.0.0.1") {
		t.Fatal("nil limiter denied an attempt")
	}
}
