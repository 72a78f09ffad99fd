package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jobdeck/entitle/ratelimit"
)

func newRedisLimiter(t *testing.T, cfg ratelimit.Config, clock *fakeClock) *ratelimit.RedisLimiter {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return ratelimit.NewRedisLimiter(client, cfg).WithClock(clock.Now)
}

func TestRedisCheckAllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := newRedisLimiter(t, ratelimit.Config{
		MaxRequests: 3,
		Window:      time.Hour,
	}, clock)

	for i := 0; i < 3; i++ {
		res, err := limiter.Check(ctx, "u1")
		if err != nil {
			t.Fatalf("Check %d failed: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("call %d: expected allowed", i+1)
		}
		if res.Current != i+1 {
			t.Errorf("call %d: current = %d, want %d", i+1, res.Current, i+1)
		}
		if res.Remaining != 3-(i+1) {
			t.Errorf("call %d: remaining = %d, want %d", i+1, res.Remaining, 3-(i+1))
		}
	}

	res, err := limiter.Check(ctx, "u1")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.Allowed {
		t.Error("4th call within window: expected denied")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", res.Remaining)
	}
	wantReset := clock.Now().Add(time.Hour)
	if !res.ResetAt.Equal(wantReset) {
		t.Errorf("resetAt = %v, want %v", res.ResetAt, wantReset)
	}
}

func TestRedisWindowSlides(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := newRedisLimiter(t, ratelimit.Config{
		MaxRequests: 2,
		Window:      time.Minute,
	}, clock)

	limiter.Check(ctx, "u1")
	clock.Advance(30 * time.Second)
	limiter.Check(ctx, "u1")

	if res, _ := limiter.Check(ctx, "u1"); res.Allowed {
		t.Fatal("expected denial while both requests in window")
	}

	// 61s after the first request only the second remains counted, so the
	// sorted set prunes down and admits one more.
	clock.Advance(31 * time.Second)
	res, err := limiter.Check(ctx, "u1")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !res.Allowed {
		t.Error("expected allowed after oldest request expired")
	}
	if res.Current != 2 {
		t.Errorf("current = %d, want 2 after pruning", res.Current)
	}
}

func TestRedisZeroMaxRequestsAlwaysDenies(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := newRedisLimiter(t, ratelimit.Config{
		MaxRequests: 0,
		Window:      time.Minute,
	}, clock)

	res, err := limiter.Check(ctx, "u1")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.Allowed {
		t.Error("maxRequests=0 must always deny")
	}
}

func TestRedisStatusDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := newRedisLimiter(t, ratelimit.Config{
		MaxRequests: 3,
		Window:      time.Minute,
	}, clock)

	limiter.Check(ctx, "u1")

	for i := 0; i < 10; i++ {
		if _, err := limiter.Status(ctx, "u1"); err != nil {
			t.Fatalf("Status failed: %v", err)
		}
	}

	res, err := limiter.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if res.Current != 1 {
		t.Errorf("current = %d after repeated Status calls, want 1", res.Current)
	}
	if res.Remaining != 2 {
		t.Errorf("remaining = %d, want 2", res.Remaining)
	}
}

func TestRedisReset(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := newRedisLimiter(t, ratelimit.Config{
		MaxRequests: 1,
		Window:      time.Hour,
	}, clock)

	limiter.Check(ctx, "u1")
	if res, _ := limiter.Check(ctx, "u1"); res.Allowed {
		t.Fatal("expected denial at limit")
	}

	if err := limiter.Reset(ctx, "u1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if res, _ := limiter.Check(ctx, "u1"); !res.Allowed {
		t.Error("expected allowed after reset")
	}
}

// Concurrent checks sharing one clock reading must each land as a distinct
// sorted-set member: were two requests to collapse into one, the window
// would undercount and admit more than the limit.
func TestRedisConcurrentChecksHoldLimit(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := newRedisLimiter(t, ratelimit.Config{
		MaxRequests: 25,
		Window:      time.Hour,
	}, clock)

	const callers = 100
	var allowed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			res, err := limiter.Check(ctx, "u1")
			if err != nil {
				t.Errorf("Check failed: %v", err)
				return
			}
			if res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 25 {
		t.Errorf("allowed = %d of %d concurrent calls, want exactly 25", got, callers)
	}

	res, err := limiter.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if res.Current != 25 {
		t.Errorf("current = %d, want 25 recorded requests", res.Current)
	}
}

func TestRedisIndependentKeys(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := newRedisLimiter(t, ratelimit.Config{
		MaxRequests: 1,
		Window:      time.Hour,
	}, clock)

	if res, _ := limiter.Check(ctx, "u1"); !res.Allowed {
		t.Fatal("u1 first call: expected allowed")
	}
	if res, _ := limiter.Check(ctx, "u2"); !res.Allowed {
		t.Error("u2 must not be affected by u1's usage")
	}
}
