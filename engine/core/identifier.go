package core

import "sync/atomic"

// ID identifies a game object within the scene that issued it.
type ID uint32

// IDGenerator hands out monotonically increasing identifiers starting at 0.
// Each scene owns its own generator; IDs are never reused.
type IDGenerator struct {
	next atomic.Uint32
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns a fresh identifier.
func (g *IDGenerator) Next() ID {
	return ID(g.next.Add(1) - 1)
}

// Issued returns how many identifiers have been handed out so far.
func (g *IDGenerator) Issued() uint32 {
	return g.next.Load()
}
