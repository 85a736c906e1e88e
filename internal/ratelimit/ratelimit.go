// Package ratelimit throttles chat traffic with a sliding window keyed by
// (client address, session). Two implementations share the Limiter interface:
// an in-process window for single instances and a Redis-backed window shared
// across gateway replicas.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Policy describes the window shape: Limit accepted requests per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultPolicy is 30 accepted requests per rolling 60 seconds.
var DefaultPolicy = Policy{Limit: 30, Window: 60 * time.Second}

// Decision is the outcome of one admission check. RetryAfter is populated
// only when the request was rejected.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits or rejects a request for the given key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Key builds the canonical limiter key from the caller identity.
func Key(clientAddr, sessionID string) string {
	return fmt.Sprintf("ratelimit:%s:%s", clientAddr, sessionID)
}

// SlidingWindow is the in-process limiter. Admission is an atomic
// evict-check-append under one mutex, so concurrent requests for the same
// key cannot both claim the last slot.
type SlidingWindow struct {
	policy Policy
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewSlidingWindow builds an in-process limiter with the given policy.
func NewSlidingWindow(policy Policy) *SlidingWindow {
	return &SlidingWindow{
		policy: policy,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// WithClock overrides the time source, for tests.
func (l *SlidingWindow) WithClock(now func() time.Time) *SlidingWindow {
	l.now = now
	return l
}

func (l *SlidingWindow) Allow(ctx context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.policy.Window)

	window := l.hits[key]
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.policy.Limit {
		l.hits[key] = kept
		retry := kept[0].Add(l.policy.Window).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}

	kept = append(kept, now)
	l.hits[key] = kept
	return Decision{Allowed: true, Remaining: l.policy.Limit - len(kept)}, nil
}

// Purge drops keys whose entire window has expired. Callers may run it
// periodically to bound memory on long-lived processes.
func (l *SlidingWindow) Purge() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.policy.Window)
	for key, window := range l.hits {
		if len(window) == 0 || !window[len(window)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}
