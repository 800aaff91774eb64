package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/ubi/internal/ledger"
)

// BlockClock is a deterministic source of block time for scenarios and
// tests. Block time only moves forward.
//
// Thread-safety: all methods are safe for concurrent use.
type BlockClock struct {
	mu  sync.Mutex
	now ledger.Timestamp
}

// NewBlockClock returns a clock reading start.
func NewBlockClock(start ledger.Timestamp) *BlockClock {
	return &BlockClock{now: start}
}

// Now returns the current block time.
func (c *BlockClock) Now() ledger.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
// Negative durations are rejected by returning the unchanged time.
func (c *BlockClock) Advance(d ledger.Duration) ledger.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return c.now
}

// Set jumps to t. Going backwards is an error.
func (c *BlockClock) Set(t ledger.Timestamp) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t < c.now {
		return fmt.Errorf("block time cannot go back from %d to %d", c.now, t)
	}
	c.now = t
	return nil
}

// Reset rewinds the clock to start for reuse.
func (c *BlockClock) Reset(start ledger.Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = start
}
