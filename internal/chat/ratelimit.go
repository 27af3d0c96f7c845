package chat

import (
	"sync"
	"time"
)

// SendRateLimiter caps outgoing messages to limit per sliding window.
type SendRateLimiter struct {
	mu      sync.Mutex
	history []time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewSendRateLimiter(limit int, window time.Duration) *SendRateLimiter {
	return &SendRateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (rl *SendRateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.window)

	fresh := make([]time.Time, 0, len(rl.history))
	for _, t := range rl.history {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history = fresh
		return false
	}

	rl.history = append(fresh, now)
	return true
}
