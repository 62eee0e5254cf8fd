package session

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum gap between two transactions from one user.
const DefaultCooldown = 2 * time.Second

// Cooldown rate-limits users by id.
type Cooldown struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[int64]time.Time
}

// NewCooldown creates a limiter with the given window. Zero disables it.
func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{
		window: window,
		now:    time.Now,
		last:   make(map[int64]time.Time),
	}
}

// WithClock replaces the time source. Used by tests.
func (c *Cooldown) WithClock(now func() time.Time) *Cooldown {
	c.now = now
	return c
}

// Allow reports whether user may act now and, if so, starts a new window.
func (c *Cooldown) Allow(user int64) bool {
	if c.window <= 0 {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.last[user]; ok && now.Sub(last) < c.window {
		return false
	}
	c.last[user] = now
	return true
}
