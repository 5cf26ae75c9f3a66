// Package ratelimit bounds how often a key may perform an action.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether one more event for key fits the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter is a per-process sliding window limiter. Keys whose
// events have all expired are swept at most once per window.
type MemoryLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	now       func() time.Time
	events    map[string][]time.Time
	lastSweep time.Time
}

// NewMemoryLimiter allows limit events per window for each key.
func NewMemoryLimiter(limit int, window time.Duration, now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		limit:     limit,
		window:    window,
		now:       now,
		events:    make(map[string][]time.Time),
		lastSweep: now(),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	kept := recent(l.events[key], cutoff)
	if len(kept) >= l.limit {
		if len(kept) == 0 {
			delete(l.events, key)
		} else {
			l.events[key] = kept
		}
		return false, nil
	}

	l.events[key] = append(kept, now)
	return true, nil
}

// sweep drops every key without events after cutoff.
func (l *MemoryLimiter) sweep(cutoff time.Time) {
	for key, events := range l.events {
		kept := recent(events, cutoff)
		if len(kept) == 0 {
			delete(l.events, key)
			continue
		}
		l.events[key] = kept
	}
}

// recent filters events in place, keeping those after cutoff.
func recent(events []time.Time, cutoff time.Time) []time.Time {
	kept := events[:0]
	for _, ts := range events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
