package upstream

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatchSuppressesWhileLastEventAtEpoch(t *testing.T) {
	s := &Supervisor{watchdog: 20 * time.Millisecond, logger: testLogger()}
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	fired := false
	wrappedCancel := func() { fired = true }
	s.watch(ctx, wrappedCancel)

	if fired {
		t.Fatal("watch should not fire while lastEventAt is still at its epoch suppression value")
	}
}

func TestWatchFiresAfterSilenceExceedsWindow(t *testing.T) {
	s := &Supervisor{watchdog: 15 * time.Millisecond, logger: testLogger()}
	s.lastEventAt.Store(time.Now().Add(-time.Hour).UnixNano())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	fired := make(chan struct{})
	s.watch(ctx, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected watch to fire cancel after silence exceeded the watchdog window")
	}
}

func TestWatchDoesNotFireWhileEventsAreFresh(t *testing.T) {
	s := &Supervisor{watchdog: 40 * time.Millisecond, logger: testLogger()}
	s.lastEventAt.Store(time.Now().UnixNano())

	// ctx expires well inside the watchdog window, so every tick observes
	// an event still younger than the window and watch exits via ctx.Done.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()

	fired := false
	s.watch(ctx, func() { fired = true })

	if fired {
		t.Fatal("watch should not fire while the last event is within the watchdog window")
	}
}
