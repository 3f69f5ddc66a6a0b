package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/splax/carebase/internal/domain"
)

const newsInsert = `INSERT INTO health_news (id, title, url, source, summary, published_at, fetched_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (url) DO NOTHING`

// UpsertNews stores new headlines, skipping URLs already present. It returns
// the number of rows inserted.
func (r *Repository) UpsertNews(ctx context.Context, items []domain.NewsItem) (int, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	inserted := 0
	for _, item := range items {
		id := item.ID
		if id == "" {
			id = uuid.NewString()
		}
		tag, err := r.db.Exec(ctx, newsInsert, id, item.Title, item.URL, item.Source, item.Summary, item.PublishedAt.UTC(), item.FetchedAt.UTC())
		if err != nil {
			return inserted, translate("upsert news", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
