package ports

import (
	"context"
	"iter"
	"time"

	"NewsShorts/internal/domain"
)

// NewsSource yields candidate items lazily; breaking the loop stops provider calls.
type NewsSource interface {
	Fetch(ctx context.Context, req domain.FetchRequest) iter.Seq2[domain.NewsItem, error]
}

// TrendingSource returns keywords ranked by trend strength.
type TrendingSource interface {
	FetchKeywords(ctx context.Context, region string, count int) ([]string, error)
}

// HistoryStore is the durable, append-only record of processed items.
type HistoryStore interface {
	IsProcessed(ctx context.Context, itemID string) (bool, error)
	Commit(ctx context.Context, record domain.HistoryRecord) error
	Recent(ctx context.Context, limit int) ([]domain.HistoryRecord, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// KeywordLedger remembers which keyword queries were already answered on a day.
type KeywordLedger interface {
	SeenToday(ctx context.Context, key string, day time.Time) (bool, error)
	Mark(ctx context.Context, key string, day time.Time) error
}

// CardRenderer draws the news card overlay for an item.
type CardRenderer interface {
	Render(ctx context.Context, item domain.NewsItem, tmpl domain.CardTemplate) (domain.RenderedCard, error)
}

// VideoComposer overlays a card onto the base asset. Release removes a composed file.
type VideoComposer interface {
	Compose(ctx context.Context, base domain.Asset, card domain.RenderedCard, audio *domain.Asset) (domain.ComposedVideo, error)
	Release(video domain.ComposedVideo) error
}

// Publisher uploads a composed video.
type Publisher interface {
	Publish(ctx context.Context, video domain.ComposedVideo, meta domain.VideoMetadata) (domain.PublishResult, error)
}

// MetadataBuilder derives upload metadata from an item.
type MetadataBuilder interface {
	Build(item domain.NewsItem) domain.VideoMetadata
}

// Credential hands out a currently valid secret and accepts invalidation.
type Credential interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Notifier streams run reports to Telegram or other channels.
type Notifier interface {
	PublishReport(ctx context.Context, report string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
