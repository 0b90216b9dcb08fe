package governor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestGovernor(capacity, maxQueue int) *Governor {
	return New(Config{Name: "test", Capacity: capacity, MaxQueue: maxQueue}, nil)
}

// waitFor polls until cond holds or fails the test after a second.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, time.Millisecond)
}

func TestRunReturnsResult(t *testing.T) {
	g := newTestGovernor(2, 0)

	v, err := Run(g, context.Background(), "lookup", time.Second, func(ctx context.Context) (string, error) {
		return "hello", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", v)
	assert.Equal(t, 0, g.Stats().Active)
}

func TestRunPassesOperationErrorThrough(t *testing.T) {
	g := newTestGovernor(1, 0)
	boom := errors.New("boom")

	_, err := Run(g, context.Background(), "lookup", time.Second, func(ctx context.Context) (int, error) {
		return 0, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, IsUnavailable(err))
}

func TestRunRejectsInvalidBudget(t *testing.T) {
	g := newTestGovernor(1, 0)
	var started atomic.Bool

	for _, budget := range []time.Duration{0, -time.Second} {
		_, err := Run(g, context.Background(), "lookup", budget, func(ctx context.Context) (int, error) {
			started.Store(true)
			return 1, nil
		})
		assert.ErrorIs(t, err, ErrInvalidBudget)
	}
	assert.False(t, started.Load())
}

func TestRunRecoversPanic(t *testing.T) {
	g := newTestGovernor(1, 0)

	_, err := Run(g, context.Background(), "explode", time.Second, func(ctx context.Context) (int, error) {
		panic("kaboom")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, 0, g.Stats().Active)
}

func TestRunNeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	g := newTestGovernor(capacity, 0)

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < capacity+1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Run(g, context.Background(), "work", time.Second, func(ctx context.Context) (struct{}, error) {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(30 * time.Millisecond)
				current.Add(-1)
				return struct{}{}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(capacity), peak.Load())
	assert.Equal(t, Stats{Name: "test", Capacity: capacity}, g.Stats())
}

func TestRunThirdOperationWaitsForFirstCompletion(t *testing.T) {
	const unit = 50 * time.Millisecond
	const slack = 10 * time.Millisecond
	g := newTestGovernor(2, 0)

	var mu sync.Mutex
	var starts, ends []time.Duration
	begin := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Run(g, context.Background(), "work", time.Second, func(ctx context.Context) (struct{}, error) {
				mu.Lock()
				starts = append(starts, time.Since(begin))
				mu.Unlock()

				time.Sleep(unit)

				mu.Lock()
				ends = append(ends, time.Since(begin))
				mu.Unlock()
				return struct{}{}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	total := time.Since(begin)

	require.Len(t, starts, 3)
	require.Len(t, ends, 3)
	// Appends happen in time order, so index 0 is the first completion and index 2 the third start.
	assert.Less(t, starts[1], unit, "two operations start right away")
	assert.GreaterOrEqual(t, starts[2], ends[0], "third start waits for a free slot")
	assert.GreaterOrEqual(t, starts[2], unit-slack)
	assert.GreaterOrEqual(t, total, 2*unit-slack)
	assert.Less(t, total, 3*unit, "third operation runs as soon as a slot frees")
	assert.Equal(t, Stats{Name: "test", Capacity: 2}, g.Stats())
}

func TestRunAdmitsInFIFOOrder(t *testing.T) {
	g := newTestGovernor(1, 0)
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = Run(g, context.Background(), "holder", time.Second, func(ctx context.Context) (int, error) {
			<-release
			return 0, nil
		})
	}()
	waitFor(t, func() bool { return g.Stats().Active == 1 })

	var mu sync.Mutex
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Run(g, context.Background(), "queued", time.Second, func(ctx context.Context) (int, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return i, nil
			})
			assert.NoError(t, err)
		}()
		// Each waiter must be parked before the next one arrives.
		waitFor(t, func() bool { return g.Stats().Queued == i+1 })
	}

	close(release)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestRunTimesOutAndFreesSlot(t *testing.T) {
	g := newTestGovernor(1, 0)
	finished := make(chan struct{})

	start := time.Now()
	_, err := Run(g, context.Background(), "stubborn", 50*time.Millisecond, func(ctx context.Context) (int, error) {
		// Ignores its context on purpose.
		defer close(finished)
		time.Sleep(150 * time.Millisecond)
		return 42, nil
	})
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsUnavailable(err))
	assert.Less(t, elapsed, 140*time.Millisecond)
	assert.Equal(t, 0, g.Stats().Active)

	// The slot is usable right away even though the abandoned operation is still running.
	v, err := Run(g, context.Background(), "next", time.Second, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	<-finished
}

func TestRunCancelsOperationContextAtBudget(t *testing.T) {
	g := newTestGovernor(1, 0)

	_, err := Run(g, context.Background(), "aware", 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRunQueuedBehindTimedOutOperation(t *testing.T) {
	// One slot, a stuck operation with a 100ms budget, a second operation queued behind it.
	g := newTestGovernor(1, 0)
	stuck := make(chan struct{})
	defer close(stuck)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := Run(g, context.Background(), "stuck", 100*time.Millisecond, func(ctx context.Context) (int, error) {
			<-stuck
			return 0, nil
		})
		assert.ErrorIs(t, err, ErrTimeout)
	}()
	waitFor(t, func() bool { return g.Stats().Active == 1 })

	start := time.Now()
	v, err := Run(g, context.Background(), "second", time.Second, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	waited := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.GreaterOrEqual(t, waited, 50*time.Millisecond)
	assert.Less(t, waited, 500*time.Millisecond)
	wg.Wait()
}

func TestRunQueueFull(t *testing.T) {
	g := newTestGovernor(1, 1)
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Run(g, context.Background(), "fill", time.Second, func(ctx context.Context) (int, error) {
				<-release
				return 0, nil
			})
		}()
	}
	waitFor(t, func() bool {
		s := g.Stats()
		return s.Active == 1 && s.Queued == 1
	})

	_, err := Run(g, context.Background(), "overflow", time.Second, func(ctx context.Context) (int, error) {
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.True(t, IsUnavailable(err))

	close(release)
	wg.Wait()
}

func TestRunCallerCancelWhileQueued(t *testing.T) {
	g := newTestGovernor(1, 0)
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = Run(g, context.Background(), "holder", time.Second, func(ctx context.Context) (int, error) {
			<-release
			return 0, nil
		})
	}()
	waitFor(t, func() bool { return g.Stats().Active == 1 })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := Run(g, ctx, "impatient", time.Second, func(ctx context.Context) (int, error) {
			return 0, nil
		})
		errCh <- err
	}()
	waitFor(t, func() bool { return g.Stats().Queued == 1 })

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, g.Stats().Queued)

	close(release)
	wg.Wait()
	assert.Equal(t, 0, g.Stats().Active)
}

func TestShutdownRejectsQueuedAndNewAdmissions(t *testing.T) {
	g := newTestGovernor(1, 0)
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := Run(g, context.Background(), "active", time.Second, func(ctx context.Context) (string, error) {
			<-release
			return "finished", nil
		})
		// Active work completes normally during shutdown.
		assert.NoError(t, err)
		assert.Equal(t, "finished", v)
	}()
	waitFor(t, func() bool { return g.Stats().Active == 1 })

	queuedErr := make(chan error, 1)
	go func() {
		_, err := Run(g, context.Background(), "queued", time.Second, func(ctx context.Context) (int, error) {
			return 0, nil
		})
		queuedErr <- err
	}()
	waitFor(t, func() bool { return g.Stats().Queued == 1 })

	shutdownErr := make(chan error, 1)
	go func() {
		shutdownErr <- g.Shutdown(context.Background())
	}()

	assert.ErrorIs(t, <-queuedErr, ErrShuttingDown)
	waitFor(t, func() bool { return g.Stats().ShuttingDown })

	_, err := Run(g, context.Background(), "late", time.Second, func(ctx context.Context) (int, error) {
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrShuttingDown)

	select {
	case <-shutdownErr:
		t.Fatal("shutdown returned before active work drained")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	assert.NoError(t, <-shutdownErr)
	wg.Wait()

	// A second call only waits, and there is nothing left to wait for.
	assert.NoError(t, g.Shutdown(context.Background()))
}

func TestShutdownIdleReturnsImmediately(t *testing.T) {
	g := newTestGovernor(2, 0)
	assert.NoError(t, g.Shutdown(context.Background()))
	assert.True(t, g.Stats().ShuttingDown)
}

func TestShutdownDrainTimeout(t *testing.T) {
	g := newTestGovernor(1, 0)
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = Run(g, context.Background(), "slow", 5*time.Second, func(ctx context.Context) (int, error) {
			<-release
			return 0, nil
		})
	}()
	waitFor(t, func() bool { return g.Stats().Active == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := g.Shutdown(ctx)
	assert.ErrorIs(t, err, ErrDrainTimeout)

	close(release)
	wg.Wait()
}

func TestNewClampsCapacity(t *testing.T) {
	g := New(Config{Capacity: 0}, nil)
	s := g.Stats()
	assert.Equal(t, 1, s.Capacity)
	assert.Equal(t, "default", s.Name)
}
