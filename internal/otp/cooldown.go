package otp

import (
	"context"
	"sync"
	"time"
)

// Cooldown blocks OTP resends for a fixed duration after each send.
type Cooldown struct {
	mu       sync.Mutex
	duration time.Duration
	until    time.Time
	now      func() time.Time
	interval time.Duration
}

func NewCooldown(d time.Duration) *Cooldown {
	return &Cooldown{duration: d, now: time.Now, interval: time.Second}
}

// Start restarts the cooldown from now.
func (c *Cooldown) Start() {
	c.mu.Lock()
	c.until = c.now().Add(c.duration)
	c.mu.Unlock()
}

// Remaining is rounded up to whole seconds, as shown to the customer.
func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	left := c.until.Sub(c.now())
	if left <= 0 {
		return 0
	}
	return (left + time.Second - 1).Truncate(time.Second)
}

func (c *Cooldown) Active() bool { return c.Remaining() > 0 }

func (c *Cooldown) Reset() {
	c.mu.Lock()
	c.until = time.Time{}
	c.mu.Unlock()
}

// Run calls tick with the remaining time once per second until the
// cooldown ends or ctx is done. The final tick reports zero.
func (c *Cooldown) Run(ctx context.Context, tick func(remaining time.Duration)) {
	t := time.NewTicker(c.interval)
	defer t.Stop()

	for {
		left := c.Remaining()
		if tick != nil {
			tick(left)
		}
		if left == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if ctx.Err() != nil {
			return
		}
	}
}
