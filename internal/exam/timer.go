package exam

import (
	"sync"
	"time"
)

// Countdown is a one-shot, fixed-duration countdown. It reports the remaining
// time at every tick and calls onExpire exactly once when it reaches zero.
//
// Callbacks run on the countdown's goroutine without any internal lock held.
// After Stop returns no new callback is started; one already running may
// still finish, so callers that need strict inertness guard the callback with
// their own epoch.
type Countdown struct {
	tick time.Duration

	mu      sync.Mutex
	gen     uint64
	running bool
	total   time.Duration
	elapsed time.Duration
	stop    chan struct{}
}

func NewCountdown(tick time.Duration) *Countdown {
	if tick <= 0 {
		tick = time.Second
	}
	return &Countdown{tick: tick}
}

// Start begins a fresh countdown of total, stopping any previous one.
func (c *Countdown) Start(total time.Duration, onTick func(remaining time.Duration), onExpire func()) {
	c.mu.Lock()
	c.stopLocked()
	c.gen++
	c.running = true
	c.total = total
	c.elapsed = 0
	stop := make(chan struct{})
	c.stop = stop
	gen := c.gen
	c.mu.Unlock()

	go c.run(gen, stop, onTick, onExpire)
}

// Stop makes the countdown inert. Safe to call repeatedly.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
}

func (c *Countdown) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.running = false
	c.gen++
}

// Remaining is the time left, or zero when the countdown is not running.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0
	}
	return c.total - c.elapsed
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Countdown) run(gen uint64, stop <-chan struct{}, onTick func(time.Duration), onExpire func()) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.gen != gen || !c.running {
			c.mu.Unlock()
			return
		}
		c.elapsed += c.tick
		remaining := c.total - c.elapsed
		expired := remaining <= 0
		if expired {
			remaining = 0
			c.running = false
			c.stop = nil
		}
		c.mu.Unlock()

		if onTick != nil {
			onTick(remaining)
		}
		if expired {
			if onExpire != nil {
				onExpire()
			}
			return
		}
	}
}
