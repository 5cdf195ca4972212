package ports

import (
	"context"
	"iter"
	"time"

	"LandingArticles/internal/domain"
)

// Clock supplies the current instant; "today" is derived from it, never from ambient time.
type Clock interface {
	Now() time.Time
}

// CandidateSource fetches a feed and yields candidates newest-first. Every call fetches anew.
type CandidateSource interface {
	FetchCandidates(ctx context.Context, feed domain.Feed) (iter.Seq[domain.CandidateItem], error)
}

// ExtractionInput is the raw material handed to an Extractor.
type ExtractionInput struct {
	RawContent string
	SourceURL  string
}

// Extraction is a successful extraction result. Title and ImageURL are page hints
// and may be empty.
type Extraction struct {
	Markdown string
	Stage    string
	Title    string
	ImageURL string
}

// Extractor turns raw item content or the live page into Markdown.
type Extractor interface {
	Extract(ctx context.Context, in ExtractionInput) (Extraction, error)
}

// SlotStore is the sole enforcer of the one-article-per-day invariant.
type SlotStore interface {
	IsSlotFilled(ctx context.Context, slot domain.SlotDate) (bool, error)
	TryClaimSlot(ctx context.Context, slot domain.SlotDate, article domain.Article) (domain.Article, error)
	HasSourceURL(ctx context.Context, normalizedURL string) (bool, error)
}

// ArticleReader exposes the read paths served to consumers.
type ArticleReader interface {
	LatestArticle(ctx context.Context) (domain.Article, error)
	ArticleBySlot(ctx context.Context, slot domain.SlotDate) (domain.Article, error)
	ArticleByID(ctx context.Context, id int64) (domain.Article, error)
	ListArticles(ctx context.Context, limit, offset int) ([]domain.Article, error)
}

// FeedRegistry is the slice of feed storage the orchestrator depends on.
type FeedRegistry interface {
	ListActiveFeeds(ctx context.Context) ([]domain.Feed, error)
	RecordLastSeen(ctx context.Context, feedID int64, marker domain.Marker, at time.Time) error
}

// FeedRepository adds the admin mutations on top of FeedRegistry.
type FeedRepository interface {
	FeedRegistry
	CreateFeed(ctx context.Context, feed domain.Feed) (domain.Feed, error)
	ListFeeds(ctx context.Context) ([]domain.Feed, error)
	FeedByID(ctx context.Context, id int64) (domain.Feed, error)
	UpdateFeed(ctx context.Context, id int64, update domain.FeedUpdate) (domain.Feed, error)
	RemoveFeed(ctx context.Context, id int64) (deactivated bool, err error)
}

// RunObserver receives every finished run report (metrics, logs).
type RunObserver interface {
	ObserveRun(report domain.RunReport)
}

// Notifier streams run summaries to an operator channel such as Telegram.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Scheduler controls when the daily job executes.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
