// Package ratelimit provides a per-key sliding-window request limiter.
//
// The limiter counts requests in the trailing window ending at "now", not in
// fixed calendar-aligned buckets. Two implementations share one contract: an
// in-memory limiter with bounded key space (per-process enforcement) and a
// Redis-backed limiter for deployments where the limit must hold across
// instances.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a limit check. Denial is not an error: callers
// receive structured retry metadata and decide how to surface it.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool `json:"allowed"`

	// Remaining is how many further requests the key may make in the
	// current window.
	Remaining int `json:"remaining"`

	// Current is the number of requests counted against the key inside the
	// window, including this one when it was allowed.
	Current int `json:"current"`

	// ResetAt is when the oldest counted request falls out of the window.
	// For a key with no recorded requests it is now + window.
	ResetAt time.Time `json:"reset_at"`
}

// RetryAfter returns how long the caller should wait before retrying,
// relative to now. Zero when the request was allowed.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed {
		return 0
	}
	d := r.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Config holds the limiter parameters.
type Config struct {
	// MaxRequests is the number of requests allowed per key per window.
	// Zero denies everything.
	MaxRequests int

	// Window is the sliding window length.
	Window time.Duration

	// MaxKeys bounds the tracked key space of the in-memory limiter. When a
	// new key would exceed the bound, the least-recently-accessed key is
	// evicted. Ignored by the Redis limiter, which relies on key expiry.
	MaxKeys int
}

// Limiter is the check/status/reset contract shared by all backends.
type Limiter interface {
	// Check evaluates and records a request for the key.
	Check(ctx context.Context, key string) (Result, error)

	// Status performs the same window computation without recording a
	// request, for displaying remaining quota.
	Status(ctx context.Context, key string) (Result, error)

	// Reset unconditionally clears the key's record.
	Reset(ctx context.Context, key string) error
}
