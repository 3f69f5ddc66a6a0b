// Package news periodically pulls health headlines into the news table.
package news

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/splax/carebase/internal/domain"
	"github.com/splax/carebase/internal/repository"
	"github.com/splax/carebase/internal/service/periodic"
	"github.com/splax/carebase/pkg/feed"
)

const (
	defaultInterval = time.Hour
	fetchTimeout    = 30 * time.Second
)

// Fetcher returns the current feed contents.
type Fetcher interface {
	Fetch(ctx context.Context) ([]feed.Item, error)
}

// Scheduler fetches the feed on start and then on every interval.
type Scheduler struct {
	repo     repository.NewsRepository
	fetcher  Fetcher
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	loop     periodic.Loop
}

// NewScheduler constructs a Scheduler. A nil fetcher leaves it disabled.
func NewScheduler(repo repository.NewsRepository, fetcher Fetcher, logger *slog.Logger, interval time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		repo:     repo,
		fetcher:  fetcher,
		logger:   logger.With("component", "news"),
		interval: interval,
		now:      time.Now,
	}
}

// Name identifies the service in bootstrap logs and health output.
func (s *Scheduler) Name() string { return "news" }

// Start begins polling. Calling it again while running is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.fetcher == nil {
		s.logger.Info("news scheduler disabled", "reason", "no feed configured")
		return nil
	}
	if s.repo == nil {
		return fmt.Errorf("news scheduler: repository required")
	}
	if s.loop.Start(ctx, s.interval, s.tick) {
		s.logger.Info("news scheduler started", "interval", s.interval)
	}
	return nil
}

// Stop halts polling and waits for an in-flight fetch.
func (s *Scheduler) Stop() {
	if s.loop.Running() {
		s.loop.Stop()
		s.logger.Info("news scheduler stopped")
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	added, err := s.RunOnce(opCtx)
	if err != nil {
		s.logger.Warn("news refresh failed", "error", err)
		return
	}
	s.logger.Debug("news refreshed", "added", added)
}

// RunOnce fetches the feed and stores unseen items, returning how many were new.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	items, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch feed: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}
	fetched := s.now().UTC()
	records := make([]domain.NewsItem, 0, len(items))
	for _, item := range items {
		records = append(records, domain.NewsItem{
			ID:          uuid.NewString(),
			Title:       item.Title,
			URL:         item.URL,
			Source:      item.Source,
			Summary:     item.Summary,
			PublishedAt: item.PublishedAt,
			FetchedAt:   fetched,
		})
	}
	added, err := s.repo.UpsertNews(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("store news: %w", err)
	}
	return added, nil
}
