// Package governor bounds how many expensive operations run at once. Admissions beyond the capacity wait in a FIFO
// queue; every admitted operation runs under a timeout budget; Shutdown rejects new and queued work and waits for
// the active operations to drain.
package governor

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kb-assistant-be/internal/metrics"
	"kb-assistant-be/internal/pkg/logger"
)

// Config describes one governor instance.
type Config struct {
	// Name labels logs and metrics ("requests", "operations").
	Name string
	// Capacity is the maximum number of operations holding a slot at the same time. Values below 1 become 1.
	Capacity int
	// MaxQueue bounds the wait queue. Zero or negative means unbounded.
	MaxQueue int
}

// Stats is a point-in-time snapshot of a governor.
type Stats struct {
	Name         string `json:"name"`
	Capacity     int    `json:"capacity"`
	Active       int    `json:"active"`
	Queued       int    `json:"queued"`
	ShuttingDown bool   `json:"shutting_down"`
}

// waiter is a parked admission. ready is closed exactly once, either when the slot is handed over (err == nil)
// or when the admission is rejected by Shutdown.
type waiter struct {
	ready chan struct{}
	err   error
	elem  *list.Element
}

// Governor owns the active counter, the wait list and the shutdown flag. Nothing outside this type touches them.
type Governor struct {
	name     string
	capacity int
	maxQueue int
	logger   logger.ILogger

	mu            sync.Mutex
	active        int
	queue         *list.List
	closing       bool
	drained       chan struct{}
	drainedClosed bool
}

// New creates a governor. A nil logger discards log output.
func New(cfg Config, log logger.ILogger) *Governor {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Governor{
		name:     cfg.Name,
		capacity: cfg.Capacity,
		maxQueue: cfg.MaxQueue,
		logger:   log,
		queue:    list.New(),
		drained:  make(chan struct{}),
	}
}

// Name returns the instance name.
func (g *Governor) Name() string {
	return g.name
}

// Stats returns the current counters.
func (g *Governor) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		Name:         g.name,
		Capacity:     g.capacity,
		Active:       g.active,
		Queued:       g.queue.Len(),
		ShuttingDown: g.closing,
	}
}

// Run admits op under g. It runs op immediately when a slot is free, otherwise waits in FIFO order. Once the slot
// is granted op gets a context that expires after budget; if op has not returned by then Run returns ErrTimeout
// and frees the slot. Errors returned by op are passed through unchanged.
func Run[T any](g *Governor, ctx context.Context, name string, budget time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if budget <= 0 {
		return zero, fmt.Errorf("%s: %w", name, ErrInvalidBudget)
	}

	queuedAt := time.Now()
	if err := g.acquire(ctx); err != nil {
		metrics.GovernorOperationsTotal.WithLabelValues(g.name, name, outcomeLabel(err)).Inc()
		return zero, err
	}
	metrics.GovernorQueueWait.WithLabelValues(g.name).Observe(time.Since(queuedAt).Seconds())

	opCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type result struct {
		val T
		err error
	}
	// Buffered so an abandoned operation can still deliver and exit.
	done := make(chan result, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%s: panic: %v", name, r)}
			}
		}()
		v, err := op(opCtx)
		done <- result{val: v, err: err}
	}()

	select {
	case res := <-done:
		g.release()
		metrics.GovernorOperationDuration.WithLabelValues(g.name, name).Observe(time.Since(start).Seconds())
		if res.err != nil && ctx.Err() == nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			// The operation noticed its own deadline before we did.
			metrics.GovernorOperationsTotal.WithLabelValues(g.name, name, "timeout").Inc()
			return zero, fmt.Errorf("%s after %s: %w", name, budget, ErrTimeout)
		}
		if res.err != nil {
			metrics.GovernorOperationsTotal.WithLabelValues(g.name, name, "error").Inc()
			return res.val, res.err
		}
		metrics.GovernorOperationsTotal.WithLabelValues(g.name, name, "ok").Inc()
		return res.val, nil

	case <-opCtx.Done():
		g.release()
		metrics.GovernorOperationDuration.WithLabelValues(g.name, name).Observe(time.Since(start).Seconds())
		if err := ctx.Err(); err != nil {
			metrics.GovernorOperationsTotal.WithLabelValues(g.name, name, "cancelled").Inc()
			return zero, err
		}
		metrics.GovernorOperationsTotal.WithLabelValues(g.name, name, "timeout").Inc()
		g.logger.Warn("Governor", "Operation exceeded its budget, result will be discarded", map[string]interface{}{
			"governor":  g.name,
			"operation": name,
			"budget_ms": budget.Milliseconds(),
		})
		return zero, fmt.Errorf("%s after %s: %w", name, budget, ErrTimeout)
	}
}

// acquire takes a slot or parks the caller until one is handed over.
func (g *Governor) acquire(ctx context.Context) error {
	g.mu.Lock()
	if g.closing {
		g.mu.Unlock()
		return ErrShuttingDown
	}
	if g.active < g.capacity && g.queue.Len() == 0 {
		g.active++
		g.publishLocked()
		g.mu.Unlock()
		return nil
	}
	if g.maxQueue > 0 && g.queue.Len() >= g.maxQueue {
		g.mu.Unlock()
		return ErrQueueFull
	}
	w := &waiter{ready: make(chan struct{})}
	w.elem = g.queue.PushBack(w)
	g.publishLocked()
	g.mu.Unlock()

	select {
	case <-w.ready:
		return w.err
	case <-ctx.Done():
	}

	g.mu.Lock()
	select {
	case <-w.ready:
		// Granted or rejected while we were giving up.
		g.mu.Unlock()
		if w.err != nil {
			return w.err
		}
		g.release()
		return ctx.Err()
	default:
	}
	g.queue.Remove(w.elem)
	g.publishLocked()
	g.mu.Unlock()
	return ctx.Err()
}

// release frees a slot, handing it straight to the oldest waiter if there is one.
func (g *Governor) release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if front := g.queue.Front(); front != nil {
		w := g.queue.Remove(front).(*waiter)
		close(w.ready)
		g.publishLocked()
		return
	}

	g.active--
	g.publishLocked()
	if g.closing && g.active == 0 {
		g.closeDrainedLocked()
	}
}

// Shutdown stops admissions, rejects every queued admission with ErrShuttingDown and blocks until no operation is
// active or ctx ends, in which case it returns ErrDrainTimeout. Calling it again only waits.
func (g *Governor) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if !g.closing {
		g.closing = true
		rejected := 0
		for e := g.queue.Front(); e != nil; e = e.Next() {
			w := e.Value.(*waiter)
			w.err = ErrShuttingDown
			close(w.ready)
			rejected++
		}
		g.queue.Init()
		if g.active == 0 {
			g.closeDrainedLocked()
		}
		g.publishLocked()
		g.logger.Info("Governor", "Shutdown initiated", map[string]interface{}{
			"governor": g.name,
			"active":   g.active,
			"rejected": rejected,
		})
	}
	drained := g.drained
	g.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		st := g.Stats()
		return fmt.Errorf("%s: %d operations still active: %w", g.name, st.Active, ErrDrainTimeout)
	}
}

func (g *Governor) closeDrainedLocked() {
	if !g.drainedClosed {
		close(g.drained)
		g.drainedClosed = true
	}
}

func (g *Governor) publishLocked() {
	metrics.GovernorActive.WithLabelValues(g.name).Set(float64(g.active))
	metrics.GovernorQueued.WithLabelValues(g.name).Set(float64(g.queue.Len()))
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrShuttingDown):
		return "shutting_down"
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "rejected"
	}
}
