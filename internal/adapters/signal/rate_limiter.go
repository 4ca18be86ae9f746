package signal

import (
	"sync"
	"time"

	"github.com/pairwave/pairwave/internal/domain"
)

// OpRateLimiter is a sliding-window limiter on room-mutating ops,
// keyed by client identity.
type OpRateLimiter struct {
	mu        sync.Mutex
	history   map[domain.ClientID][]time.Time
	limit     int
	interval  time.Duration
	lastPrune time.Time

	now func() time.Time
}

func NewOpRateLimiter(limit int, interval time.Duration) *OpRateLimiter {
	return &OpRateLimiter{
		history:  make(map[domain.ClientID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *OpRateLimiter) Allow(id domain.ClientID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)
	rl.prune(windowStart, now)

	attempts := rl.history[id]

	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		return false
	}

	fresh = append(fresh, now)
	rl.history[id] = fresh

	return true
}

// prune drops clients whose window has fully elapsed, so departed
// connections do not accumulate in history forever. Runs at most once
// per interval; Allow already refreshes the caller's own entry.
func (rl *OpRateLimiter) prune(windowStart, now time.Time) {
	if now.Sub(rl.lastPrune) < rl.interval {
		return
	}
	rl.lastPrune = now
	for id, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, id)
		}
	}
}
