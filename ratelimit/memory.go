package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is an in-process sliding-window limiter with a bounded key
// space. State is process-local: with N concurrent instances the effective
// global limit is N times the configured one. Use RedisLimiter when the
// limit must hold across instances.
type MemoryLimiter struct {
	mu      sync.Mutex
	cfg     Config
	records map[string]*record
	clock   func() time.Time
}

type record struct {
	// timestamps of allowed requests, oldest first. Pruned on every access,
	// not on a timer.
	timestamps     []time.Time
	lastAccessedAt time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter creates an in-memory limiter for the given config.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:     cfg,
		records: make(map[string]*record),
		clock:   time.Now,
	}
}

// WithClock overrides the limiter's time source. For tests.
func (l *MemoryLimiter) WithClock(clock func() time.Time) *MemoryLimiter {
	l.clock = clock
	return l
}

// Check evaluates and records a request for the key. The per-limiter mutex
// serializes same-key callers, closing the read-modify-write race between
// concurrent requests.
func (l *MemoryLimiter) Check(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	rec, ok := l.records[key]
	if !ok {
		l.evictIfFull()
		rec = &record{}
		l.records[key] = rec
	}
	rec.lastAccessedAt = now
	rec.prune(now, l.cfg.Window)

	current := len(rec.timestamps)
	if current >= l.cfg.MaxRequests {
		return l.result(false, rec, now), nil
	}

	rec.timestamps = append(rec.timestamps, now)
	return l.result(true, rec, now), nil
}

// Status computes the key's window state without consuming a request and
// without mutating the record.
func (l *MemoryLimiter) Status(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	rec, ok := l.records[key]
	if !ok {
		return Result{
			Allowed:   l.cfg.MaxRequests > 0,
			Remaining: l.cfg.MaxRequests,
			ResetAt:   now.Add(l.cfg.Window),
		}, nil
	}

	// Count in-window timestamps without pruning: Status is read-only.
	cutoff := now.Add(-l.cfg.Window)
	current := 0
	var oldest time.Time
	for _, ts := range rec.timestamps {
		if ts.After(cutoff) {
			if current == 0 {
				oldest = ts
			}
			current++
		}
	}

	res := Result{
		Allowed:   current < l.cfg.MaxRequests,
		Current:   current,
		Remaining: max(0, l.cfg.MaxRequests-current),
		ResetAt:   now.Add(l.cfg.Window),
	}
	if current > 0 {
		res.ResetAt = oldest.Add(l.cfg.Window)
	}
	return res, nil
}

// Reset unconditionally clears the key's record.
func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.records, key)
	return nil
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.records)
}

// evictIfFull removes the least-recently-accessed key when admitting a new
// one would exceed MaxKeys. O(n), but only paid on cache miss.
func (l *MemoryLimiter) evictIfFull() {
	if l.cfg.MaxKeys <= 0 || len(l.records) < l.cfg.MaxKeys {
		return
	}

	var lruKey string
	var lruAt time.Time
	first := true
	for k, rec := range l.records {
		if first || rec.lastAccessedAt.Before(lruAt) {
			lruKey = k
			lruAt = rec.lastAccessedAt
			first = false
		}
	}
	delete(l.records, lruKey)
}

func (l *MemoryLimiter) result(allowed bool, rec *record, now time.Time) Result {
	current := len(rec.timestamps)
	res := Result{
		Allowed:   allowed,
		Current:   current,
		Remaining: max(0, l.cfg.MaxRequests-current),
		ResetAt:   now.Add(l.cfg.Window),
	}
	if current > 0 {
		res.ResetAt = rec.timestamps[0].Add(l.cfg.Window)
	}
	return res
}

// prune drops timestamps older than the window. Garbage collection happens
// on access, never on a timer.
func (r *record) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(r.timestamps) && !r.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.timestamps = append(r.timestamps[:0], r.timestamps[i:]...)
	}
}
