package clock

import (
	"math"
	"sync"
	"time"
)

// Structs

// Clock hands out strictly increasing float64 timestamps
// derived from wall-clock time. It is safe for concurrent use.
type Clock struct {
	lock *sync.Mutex
	last float64
	now  func() time.Time
}

// Functions

// New returns a Clock reading the system wall clock.
func New() *Clock {
	return NewWithSource(time.Now)
}

// NewWithSource returns a Clock reading time from now.
func NewWithSource(now func() time.Time) *Clock {

	return &Clock{
		lock: new(sync.Mutex),
		now:  now,
	}
}

// Now returns a timestamp greater than any timestamp
// previously returned or observed by c.
func (c *Clock) Now() float64 {

	c.lock.Lock()
	defer c.lock.Unlock()

	ts := float64(c.now().UnixNano()) / float64(time.Second)

	// Wall clock stalled or went backwards.
	if ts <= c.last {
		ts = math.Nextafter(c.last, math.Inf(1))
	}

	c.last = ts

	return ts
}

// Observe makes sure subsequent calls to Now return
// timestamps greater than ts.
func (c *Clock) Observe(ts float64) {

	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		return
	}

	c.lock.Lock()

	if ts > c.last {
		c.last = ts
	}

	c.lock.Unlock()
}

// Last returns the most recent timestamp handed
// out or observed.
func (c *Clock) Last() float64 {

	c.lock.Lock()
	defer c.lock.Unlock()

	return c.last
}
