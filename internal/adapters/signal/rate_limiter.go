package signal

import (
	"sync"
	"time"
)

// GroupRateLimiter caps how fast a single user may create groups,
// using a sliding window over recent attempts.
type GroupRateLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
}

func NewGroupRateLimiter(limit int, interval time.Duration) *GroupRateLimiter {
	return &GroupRateLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *GroupRateLimiter) Allow(username string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[username]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[username] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[username] = fresh
	return true
}
