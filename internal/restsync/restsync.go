// Package restsync serializes upstream REST calls through a single-consumer
// FIFO queue so order submit/cancel/replace requests reach the exchange in
// the order clients issued them, while a circuit breaker shields the
// exchange from a burst of failures.
//
// Grounded on 0xtitan6-polymarket-mm/internal/exchange/ratelimit.go for the
// mutex-guarded worker discipline, wired to github.com/sony/gobreaker/v2 per
// SPEC_FULL.md's domain stack.
package restsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Thunk is one unit of REST work: perform the call, return its error.
type Thunk func(ctx context.Context) error

// Queue is a single-consumer FIFO of Thunks. Push enqueues and blocks only
// if the queue is full; PushNoWait never blocks, dropping the thunk (with a
// log) if the queue is full.
type Queue struct {
	mu      sync.Mutex
	items   chan Thunk
	cb      *gobreaker.CircuitBreaker[struct{}]
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	depth   func() int
	logger  *slog.Logger
}

// New creates a RestSync queue with the given buffered capacity.
func New(capacity int, logger *slog.Logger) *Queue {
	settings := gobreaker.Settings{
		Name:        "restsync",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	items := make(chan Thunk, capacity)
	q := &Queue{
		items:  items,
		cb:     gobreaker.NewCircuitBreaker[struct{}](settings),
		logger: logger.With("component", "restsync"),
	}
	q.depth = func() int { return len(items) }
	return q
}

// Push enqueues a thunk, blocking if the queue is full or until ctx is done.
func (q *Queue) Push(ctx context.Context, t Thunk) error {
	select {
	case q.items <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PushNoWait enqueues a thunk without blocking. Returns false if the queue
// was full and the thunk was dropped.
func (q *Queue) PushNoWait(t Thunk) bool {
	select {
	case q.items <- t:
		return true
	default:
		q.logger.Warn("restsync queue full, dropping request")
		return false
	}
}

// Depth returns the number of thunks currently queued, for metrics.
func (q *Queue) Depth() int {
	return q.depth()
}

// IsRunning reports whether the consumer loop is active.
func (q *Queue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Start launches the consumer loop in a goroutine. Calling Start twice is a
// no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.running = true
	q.mu.Unlock()

	q.wg.Add(1)
	go q.run(runCtx)
}

// Stop signals the consumer loop to exit and waits for it to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	cancel := q.cancel
	q.mu.Unlock()

	cancel()
	q.wg.Wait()

	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case thunk := <-q.items:
			q.execute(ctx, thunk)
		}
	}
}

// execute runs one thunk through the breaker. A failure is logged but never
// terminates the consumer loop — the next queued thunk runs regardless.
func (q *Queue) execute(ctx context.Context, thunk Thunk) {
	_, err := q.cb.Execute(func() (struct{}, error) {
		return struct{}{}, thunk(ctx)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			q.logger.Warn("restsync circuit open, dropping request")
			return
		}
		q.logger.Error("restsync request failed", "error", fmt.Errorf("restsync: %w", err))
	}
}
