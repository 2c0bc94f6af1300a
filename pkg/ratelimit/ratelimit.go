// Package ratelimit implements a sliding-window limiter keyed by user
// and action class, keeping one abusive chat from starving the bot's
// update loop.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/vechnost/vechnost/internal/observability"
)

// Limit is the allowance for one action class.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Limiter tracks request timestamps per user and action class.
type Limiter struct {
	limits   map[string]Limit
	fallback Limit

	mu      sync.Mutex
	history map[string][]time.Time
}

// NewLimiter creates a limiter. The fallback limit applies to action
// classes without an explicit entry.
func NewLimiter(limits map[string]Limit, fallback Limit) *Limiter {
	if fallback.Requests <= 0 {
		fallback = Limit{Requests: 20, Window: time.Minute}
	}
	return &Limiter{
		limits:   limits,
		fallback: fallback,
		history:  make(map[string][]time.Time),
	}
}

// Allow records an attempt and reports whether it fits in the window.
func (l *Limiter) Allow(userID int64, action string) bool {
	limit, ok := l.limits[action]
	if !ok {
		limit = l.fallback
	}

	key := fmt.Sprintf("%d:%s", userID, action)
	now := time.Now()
	cutoff := now.Add(-limit.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.history[key][:0]
	for _, ts := range l.history[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= limit.Requests {
		l.history[key] = recent
		observability.RecordRateLimited(action)
		return false
	}

	l.history[key] = append(recent, now)
	return true
}

// Prune drops users whose entire history is outside every window. The
// daemon calls it periodically to bound memory.
func (l *Limiter) Prune(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, stamps := range l.history {
		stale := true
		for _, ts := range stamps {
			if ts.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(l.history, key)
			removed++
		}
	}
	return removed
}
