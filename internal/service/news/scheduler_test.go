package news

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/splax/carebase/internal/repository/memory"
	"github.com/splax/carebase/pkg/feed"
)

func TestRunOnceStoresUnseenItems(t *testing.T) {
	store := memory.New()
	fetcher := fetcherMock{
		fetchFunc: func(context.Context) ([]feed.Item, error) {
			return []feed.Item{
				{Title: "A", URL: "https://news/a"},
				{Title: "B", URL: "https://news/b"},
			}, nil
		},
	}
	s := NewScheduler(store, fetcher, newLogger(), time.Hour)

	added, err := s.RunOnce(context.Background())
	if err != nil || added != 2 {
		t.Fatalf("expected 2 added, got %d (%v)", added, err)
	}
	added, err = s.RunOnce(context.Background())
	if err != nil || added != 0 {
		t.Fatalf("expected duplicates ignored, got %d (%v)", added, err)
	}
	if len(store.News()) != 2 {
		t.Fatalf("expected 2 stored items, got %d", len(store.News()))
	}
}

func TestRunOnceFetchError(t *testing.T) {
	fetcher := fetcherMock{
		fetchFunc: func(context.Context) ([]feed.Item, error) { return nil, feed.ErrUnauthorized },
	}
	s := NewScheduler(memory.New(), fetcher, newLogger(), time.Hour)
	if _, err := s.RunOnce(context.Background()); !errors.Is(err, feed.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestStartTwiceRunsOneLoop(t *testing.T) {
	var calls atomic.Int32
	fetched := make(chan struct{}, 4)
	fetcher := fetcherMock{
		fetchFunc: func(context.Context) ([]feed.Item, error) {
			calls.Add(1)
			fetched <- struct{}{}
			return nil, nil
		},
	}
	s := NewScheduler(memory.New(), fetcher, newLogger(), time.Hour)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	select {
	case <-fetched:
	case <-time.After(time.Second):
		t.Fatalf("expected an immediate fetch")
	}
	s.Stop()
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one fetch from one loop, got %d", got)
	}
	if s.loop.Starts() != 1 {
		t.Fatalf("expected single loop, got %d", s.loop.Starts())
	}
}

func TestStartWithoutFeedIsDisabled(t *testing.T) {
	s := NewScheduler(memory.New(), nil, newLogger(), time.Hour)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.loop.Running() {
		t.Fatalf("expected no loop without a feed")
	}
	s.Stop()
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fetcherMock struct {
	fetchFunc func(context.Context) ([]feed.Item, error)
}

func (m fetcherMock) Fetch(ctx context.Context) ([]feed.Item, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx)
	}
	return nil, nil
}
