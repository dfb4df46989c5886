package testfixtures

import (
	"fmt"
	"sync/atomic"
)

// IDGenerator produces deterministic, zero-padded identifiers such as
// "res-001" so that lexical and creation order agree.
type IDGenerator struct {
	prefix  atomic.Pointer[string]
	counter atomic.Uint64
}

// NewIDGenerator constructs a generator with the given prefix. When prefix
// is empty, "id" is used.
func NewIDGenerator(prefix string) *IDGenerator {
	g := &IDGenerator{}
	g.SetPrefix(prefix)
	return g
}

// Next returns the next identifier in the sequence.
func (g *IDGenerator) Next() string {
	n := g.counter.Add(1)
	return fmt.Sprintf("%s-%03d", *g.prefix.Load(), n)
}

// NextFunc exposes Next as a function suitable for dependency injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// SetPrefix updates the generator prefix.
func (g *IDGenerator) SetPrefix(prefix string) {
	if prefix == "" {
		prefix = "id"
	}
	g.prefix.Store(&prefix)
}

// Reset restarts the sequence so the next identifier ends in 001.
func (g *IDGenerator) Reset() {
	g.counter.Store(0)
}
