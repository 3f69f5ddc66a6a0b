// Package periodic runs a function on a fixed interval in a single goroutine.
package periodic

import (
	"context"
	"sync"
	"time"
)

// Loop owns at most one running ticker goroutine. The zero value is ready to use.
type Loop struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started int
}

// Start launches fn immediately and then every interval until ctx is
// cancelled or Stop is called. It reports false, and does nothing, when the
// loop is already running.
func (l *Loop) Start(ctx context.Context, interval time.Duration, fn func(context.Context)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return false
	}
	if interval <= 0 {
		interval = time.Minute
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	l.started++

	go func() {
		defer close(done)
		defer l.release(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		fn(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				fn(runCtx)
			}
		}
	}()
	return true
}

// Stop cancels the loop and waits for the current iteration to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// release clears the running state when the goroutine exits on its own, for
// example after the parent context is cancelled. A newer run is left alone.
func (l *Loop) release(done chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != done {
		return
	}
	l.cancel()
	l.cancel, l.done = nil, nil
}

// Running reports whether a loop goroutine is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// Starts returns how many goroutines the loop has launched over its lifetime.
func (l *Loop) Starts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}
