package periodic

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStartIsIdempotent(t *testing.T) {
	var loop Loop
	var calls atomic.Int32
	fn := func(context.Context) { calls.Add(1) }

	if !loop.Start(context.Background(), time.Hour, fn) {
		t.Fatalf("expected first start to launch the loop")
	}
	if loop.Start(context.Background(), time.Hour, fn) {
		t.Fatalf("second start must not launch another loop")
	}
	loop.Stop()
	if loop.Starts() != 1 {
		t.Fatalf("expected a single goroutine, got %d", loop.Starts())
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one immediate run, got %d", got)
	}
}

func TestConcurrentStartLaunchesOnce(t *testing.T) {
	var loop Loop
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Start(context.Background(), time.Hour, func(context.Context) {})
		}()
	}
	wg.Wait()
	defer loop.Stop()
	if loop.Starts() != 1 {
		t.Fatalf("expected one launch, got %d", loop.Starts())
	}
}

func TestLoopTicksUntilStopped(t *testing.T) {
	var loop Loop
	ticks := make(chan struct{}, 16)
	loop.Start(context.Background(), 5*time.Millisecond, func(context.Context) {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})
	for i := 0; i < 3; i++ {
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for tick %d", i)
		}
	}
	loop.Stop()
	if loop.Running() {
		t.Fatalf("expected loop stopped")
	}
	loop.Stop()
}

func TestContextCancellationEndsLoop(t *testing.T) {
	var loop Loop
	ctx, cancel := context.WithCancel(context.Background())
	seen := make(chan context.Context, 1)
	loop.Start(ctx, time.Hour, func(runCtx context.Context) { seen <- runCtx })
	runCtx := <-seen
	cancel()
	select {
	case <-runCtx.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected run context cancelled with parent")
	}
	loop.Stop()
}

func TestRestartAfterParentCancelled(t *testing.T) {
	var loop Loop
	ctx, cancel := context.WithCancel(context.Background())
	if !loop.Start(ctx, time.Hour, func(context.Context) {}) {
		t.Fatalf("expected first start to launch the loop")
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for loop.Running() {
		if time.Now().After(deadline) {
			t.Fatalf("loop still reported running after its context ended")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !loop.Start(context.Background(), time.Hour, func(context.Context) {}) {
		t.Fatalf("expected a stopped loop to start again")
	}
	defer loop.Stop()
	if !loop.Running() || loop.Starts() != 2 {
		t.Fatalf("unexpected state: running=%v starts=%d", loop.Running(), loop.Starts())
	}
}
