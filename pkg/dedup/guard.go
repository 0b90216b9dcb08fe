// Package dedup rejects re-delivery of inbound events that were already handled.
package dedup

import (
	"container/list"
	"sync"
)

// Guard reports whether an inbound event id was seen before. Seen records unseen ids as a side effect.
type Guard interface {
	Seen(id string) bool
}

// DefaultCapacity is used when a non-positive capacity is configured.
const DefaultCapacity = 1000

// MemoryGuard keeps the last Capacity ids in insertion order and evicts the oldest first.
type MemoryGuard struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

func NewMemoryGuard(capacity int) *MemoryGuard {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryGuard{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

// Seen returns true when id is already recorded. Otherwise it records id and returns false. An empty id is never
// recorded and always reports false.
func (g *MemoryGuard) Seen(id string) bool {
	if id == "" {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.index[id]; ok {
		return true
	}

	if g.order.Len() >= g.capacity {
		oldest := g.order.Front()
		g.order.Remove(oldest)
		delete(g.index, oldest.Value.(string))
	}
	g.index[id] = g.order.PushBack(id)
	return false
}

// Len returns the number of recorded ids.
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.order.Len()
}
