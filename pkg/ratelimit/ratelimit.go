// Copyright © 2025 MCP Bridge Authors, All Rights reserved

// Package ratelimit implements an approximate sliding-window request counter:
// the window is the trailing 60 seconds from each check, not a wall-clock
// minute bucket.
package ratelimit

import (
	"sync"
	"time"
)

const window = time.Minute

// Limiter counts request timestamps within the trailing window. Safe for
// concurrent use: line handlers run on their own goroutines.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	stamps []time.Time

	// Now is injectable for deterministic tests.
	Now func() time.Time
}

// New constructs a Limiter allowing limit requests per minute. A limit of
// zero or less disables limiting.
func New(limit int) *Limiter {
	return &Limiter{
		limit: limit,
		Now:   time.Now,
	}
}

// WouldExceed prunes timestamps older than the window, then reports whether
// admitting one more request would pass the ceiling.
func (l *Limiter) WouldExceed() bool {
	if l.limit <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.Now().Add(-window)
	kept := l.stamps[:0]
	for _, ts := range l.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.stamps = kept

	return len(l.stamps) >= l.limit
}

// Record appends the current timestamp. Called once per forwarded request,
// after the limit check, regardless of the request's outcome.
func (l *Limiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stamps = append(l.stamps, l.Now())
}
