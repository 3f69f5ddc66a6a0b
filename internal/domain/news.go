package domain

import "time"

// NewsItem is a health headline collected by the news scheduler.
type NewsItem struct {
	ID          string
	Title       string
	URL         string
	Source      string
	Summary     string
	PublishedAt time.Time
	FetchedAt   time.Time
}
