package sim

import (
	"sync"
	"time"

	"github.com/seawatts/grid-sub000/logging"
)

// PausableClock reports simulation time in milliseconds. Time stands still
// while paused, so cooldowns and spawn timers freeze with it.
type PausableClock struct {
	mu sync.RWMutex

	source      logging.Clock
	start       time.Time
	paused      bool
	pauseStart  time.Time
	totalPaused time.Duration
}

// NewPausableClock starts a clock on source. A nil source uses wall time.
func NewPausableClock(source logging.Clock) *PausableClock {
	if source == nil {
		source = logging.SystemClock{}
	}
	return &PausableClock{source: source, start: source.Now()}
}

// NowMs returns elapsed simulation milliseconds.
func (c *PausableClock) NowMs() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.source.Now()
	if c.paused {
		now = c.pauseStart
	}
	return (now.Sub(c.start) - c.totalPaused).Milliseconds()
}

// Pause freezes simulation time.
func (c *PausableClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	c.paused = true
	c.pauseStart = c.source.Now()
}

// Resume lets simulation time advance again.
func (c *PausableClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.totalPaused += c.source.Now().Sub(c.pauseStart)
	c.paused = false
	c.pauseStart = time.Time{}
}

// IsPaused reports whether time is frozen.
func (c *PausableClock) IsPaused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}
