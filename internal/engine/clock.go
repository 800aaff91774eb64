package engine

import "sync/atomic"

// Clock tracks the seq numbers in the log. Every invocation and completion
// gets its own seq, so the log has a total order. Seqs are read with Peek
// and claimed with advanceTo once the action is written.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that continues after start, for reopening an
// existing log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Peek returns the next seq without claiming it.
func (c *Clock) Peek() int64 {
	return c.seq.Load() + 1
}

// Current returns the last seq handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// advanceTo moves the clock forward to at least seq. It never moves back.
func (c *Clock) advanceTo(seq int64) {
	for {
		cur := c.seq.Load()
		if cur >= seq || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
