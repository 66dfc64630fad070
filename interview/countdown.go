package interview

import (
	"sync"
	"time"
)

// Countdown ticks down once per second, reporting each remaining value,
// then fires onComplete exactly once. Cancel suppresses a pending
// onComplete; cancelling after completion is a no-op.
type Countdown struct {
	mu       sync.Mutex
	cancelCh chan struct{}
	done     bool
}

func NewCountdown() *Countdown {
	return &Countdown{cancelCh: make(chan struct{})}
}

// Start runs the countdown in a new goroutine. onTick receives the
// remaining seconds before each one-second wait, starting at seconds
// and ending at 1.
func (c *Countdown) Start(seconds int, onTick func(remaining int), onComplete func()) {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for remaining := seconds; remaining > 0; remaining-- {
			if onTick != nil {
				onTick(remaining)
			}
			select {
			case <-ticker.C:
			case <-c.cancelCh:
				return
			}
		}
		c.mu.Lock()
		if c.done {
			c.mu.Unlock()
			return
		}
		c.done = true
		c.mu.Unlock()
		if onComplete != nil {
			onComplete()
		}
	}()
}

func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.done = true
	close(c.cancelCh)
}
