package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// FlowTokenGenerator mints correlation tokens for requests that arrive
// without one.
type FlowTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator mints time-sortable UUIDv7 tokens. It is stateless and
// safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7. It panics only if the system
// random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator mints "<prefix>-0001", "<prefix>-0002", ... so scenario
// runs produce stable traces.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator returns a generator starting at 1.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next token.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
