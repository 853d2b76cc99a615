package observer

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	opLoaded   = "loaded"
	opInserted = "inserted"
	opScroll   = "scroll"
	opNavigate = "navigate"
)

// event is one message from the page hook.
type event struct {
	Op  string `json:"op"`
	N   int    `json:"n,omitempty"`   // inserted items
	URL string `json:"url,omitempty"` // loaded, navigate
}

// parseEvents decodes a binding payload: a JSON array of events.
func parseEvents(payload string) ([]event, error) {
	var evs []event
	if err := json.Unmarshal([]byte(payload), &evs); err != nil {
		return nil, fmt.Errorf("observer: payload: %w", err)
	}
	return evs, nil
}

// coalescer counts inserted items and fires once the window has passed
// without new inserts, or at once when too many are waiting.
type coalescer struct {
	window  time.Duration
	max     int
	pending int
	timer   *time.Timer
	timerCh <-chan time.Time
}

func newCoalescer(window time.Duration, max int) *coalescer {
	if window <= 0 {
		window = 50 * time.Millisecond
	}
	if max <= 0 {
		max = 50
	}
	return &coalescer{window: window, max: max}
}

// add records n inserted items. It returns true when the caller should
// collect right away.
func (c *coalescer) add(n int) bool {
	if n <= 0 {
		n = 1
	}
	c.pending += n
	if c.pending >= c.max {
		return true
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.NewTimer(c.window)
	c.timerCh = c.timer.C
	return false
}

// timerC fires when the window expires. It is nil while nothing waits.
func (c *coalescer) timerC() <-chan time.Time {
	return c.timerCh
}

// take returns the pending count and resets the coalescer.
func (c *coalescer) take() int {
	n := c.pending
	c.pending = 0
	c.stop()
	return n
}

func (c *coalescer) stop() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
		c.timerCh = nil
	}
}
