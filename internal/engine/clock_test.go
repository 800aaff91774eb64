package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_PeekDoesNotClaim(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Peek())
	assert.Equal(t, int64(1), c.Peek())
	c.advanceTo(2)
	assert.Equal(t, int64(3), c.Peek())
	assert.Equal(t, int64(2), c.Current())
}

func TestClock_NewClockAt(t *testing.T) {
	c := NewClockAt(100)
	assert.Equal(t, int64(101), c.Peek())
}

func TestClock_AdvanceToNeverRewinds(t *testing.T) {
	c := NewClockAt(10)
	c.advanceTo(5)
	assert.Equal(t, int64(10), c.Current())
	c.advanceTo(20)
	assert.Equal(t, int64(20), c.Current())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock()
	const goroutines = 50

	var wg sync.WaitGroup
	for g := 1; g <= goroutines; g++ {
		wg.Add(1)
		go func(seq int64) {
			defer wg.Done()
			c.advanceTo(seq)
			_ = c.Peek()
		}(int64(g))
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines), c.Current())
}
