package restsync

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueueExecutesInFIFOOrder(t *testing.T) {
	q := New(16, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(5)
	for i := 0; i < 5; i++ {
		i := i
		if err := q.Push(context.Background(), func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
			return nil
		}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want strictly increasing FIFO order", order)
		}
	}
}

func TestPushNoWaitDropsWhenFull(t *testing.T) {
	q := New(1, testLogger())
	// Don't start the consumer — queue fills up and stays full.
	if !q.PushNoWait(func(ctx context.Context) error { return nil }) {
		t.Fatal("first push into empty buffer should succeed")
	}
	if q.PushNoWait(func(ctx context.Context) error { return nil }) {
		t.Fatal("second push into full buffer should be dropped")
	}
}

func TestStopIsIdempotentAndWaitsForConsumer(t *testing.T) {
	q := New(4, testLogger())
	ctx := context.Background()
	q.Start(ctx)

	started := make(chan struct{})
	done := make(chan struct{})
	q.Push(ctx, func(ctx context.Context) error {
		close(started)
		time.Sleep(10 * time.Millisecond)
		close(done)
		return nil
	})

	// Stop does not drain queued thunks, so wait until the consumer has
	// picked this one up; Stop must then wait for it to finish.
	<-started
	q.Stop()
	select {
	case <-done:
	default:
		t.Fatal("Stop returned before queued thunk completed")
	}
	q.Stop() // must not panic or block
}
