package clock

import (
	"sync/atomic"
	"time"
)

// FakeClock is a Clock frozen at a settable instant, for tests that compare
// cutoff dates and status timestamps.
type FakeClock struct {
	nanos atomic.Int64
}

func NewFakeClock(t time.Time) *FakeClock {
	c := &FakeClock{}
	c.Set(t)
	return c
}

func (c *FakeClock) Now() time.Time {
	return time.Unix(0, c.nanos.Load()).UTC()
}

func (c *FakeClock) Set(t time.Time) {
	c.nanos.Store(t.UnixNano())
}

func (c *FakeClock) Advance(d time.Duration) {
	c.nanos.Add(int64(d))
}

var _ Clock = (*FakeClock)(nil)
