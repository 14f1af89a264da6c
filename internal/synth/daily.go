package synth

import (
	"sync"
	"time"
)

// DailyCounter caps calls per UTC day. Reservations are taken before a
// call and released if the call fails, so only successful calls are counted
// and concurrent callers cannot overshoot the cap.
type DailyCounter struct {
	limit int
	now   func() time.Time

	mu    sync.Mutex
	day   string
	count int
}

// NewDailyCounter creates a counter. A non-positive limit disables the cap.
func NewDailyCounter(limit int, now func() time.Time) *DailyCounter {
	if now == nil {
		now = time.Now
	}
	return &DailyCounter{limit: limit, now: now}
}

// Reserve takes one unit of today's budget.
func (c *DailyCounter) Reserve() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.roll()
	if c.limit > 0 && c.count >= c.limit {
		return false
	}
	c.count++
	return true
}

// Release returns a reservation taken earlier today.
func (c *DailyCounter) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.roll()
	if c.count > 0 {
		c.count--
	}
}

// Count returns today's usage.
func (c *DailyCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.roll()
	return c.count
}

func (c *DailyCounter) roll() {
	today := c.now().UTC().Format(time.DateOnly)
	if today != c.day {
		c.day = today
		c.count = 0
	}
}
