package dedup

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryGuardSeen(t *testing.T) {
	g := NewMemoryGuard(3)

	assert.False(t, g.Seen("msg-1"), "first delivery proceeds")
	assert.True(t, g.Seen("msg-1"), "redelivery is skipped")
	assert.False(t, g.Seen("msg-2"))
	assert.Equal(t, 2, g.Len())
}

func TestMemoryGuardEvictsOldestInserted(t *testing.T) {
	g := NewMemoryGuard(2)

	g.Seen("a")
	g.Seen("b")
	// A repeat does not refresh insertion order.
	assert.True(t, g.Seen("a"))

	g.Seen("c") // evicts "a"

	assert.Equal(t, 2, g.Len())
	assert.True(t, g.Seen("b"))
	assert.True(t, g.Seen("c"))
	assert.False(t, g.Seen("a"), "evicted id is new again")
}

func TestMemoryGuardEmptyID(t *testing.T) {
	g := NewMemoryGuard(2)
	assert.False(t, g.Seen(""))
	assert.False(t, g.Seen(""))
	assert.Equal(t, 0, g.Len())
}

func TestMemoryGuardDefaultCapacity(t *testing.T) {
	g := NewMemoryGuard(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		g.Seen(fmt.Sprintf("id-%d", i))
	}
	assert.Equal(t, DefaultCapacity, g.Len())
}

func TestMemoryGuardConcurrentDeliveries(t *testing.T) {
	g := NewMemoryGuard(100)

	var proceeded atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !g.Seen("same-id") {
				proceeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), proceeded.Load())
}
