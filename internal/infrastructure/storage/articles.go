package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"LandingArticles/internal/domain"
	"LandingArticles/internal/ports"
)

var (
	_ ports.SlotStore     = (*Store)(nil)
	_ ports.ArticleReader = (*Store)(nil)
)

var articleColumns = []string{
	"id", "slot_date", "feed_id", "item_id", "title", "body", "image_url", "source_url",
	"normalized_url", "published_at", "ingested_at", "word_count", "checksum", "extraction_stage",
}

type articleRow struct {
	ID              int64        `db:"id"`
	Slot            string       `db:"slot_date"`
	FeedID          int64        `db:"feed_id"`
	ItemID          string       `db:"item_id"`
	Title           string       `db:"title"`
	Body            string       `db:"body"`
	ImageURL        string       `db:"image_url"`
	SourceURL       string       `db:"source_url"`
	NormalizedURL   string       `db:"normalized_url"`
	PublishedAt     sql.NullTime `db:"published_at"`
	IngestedAt      time.Time    `db:"ingested_at"`
	WordCount       int          `db:"word_count"`
	Checksum        string       `db:"checksum"`
	ExtractionStage string       `db:"extraction_stage"`
}

func (r articleRow) toDomain() domain.Article {
	a := domain.Article{
		ID:              r.ID,
		Slot:            domain.SlotDate(r.Slot),
		FeedID:          r.FeedID,
		ItemID:          r.ItemID,
		Title:           r.Title,
		Body:            r.Body,
		ImageURL:        r.ImageURL,
		SourceURL:       r.SourceURL,
		NormalizedURL:   r.NormalizedURL,
		IngestedAt:      r.IngestedAt.UTC(),
		WordCount:       r.WordCount,
		Checksum:        r.Checksum,
		ExtractionStage: r.ExtractionStage,
	}
	if r.PublishedAt.Valid {
		a.PublishedAt = r.PublishedAt.Time.UTC()
	}
	return a
}

// IsSlotFilled reports whether an article already occupies slot.
func (s *Store) IsSlotFilled(ctx context.Context, slot domain.SlotDate) (bool, error) {
	return s.exists(ctx, "is slot filled", sq.Eq{"slot_date": slot.String()})
}

// HasSourceURL reports whether an article with this normalized URL was already stored.
func (s *Store) HasSourceURL(ctx context.Context, normalizedURL string) (bool, error) {
	return s.exists(ctx, "has source url", sq.Eq{"normalized_url": normalizedURL})
}

func (s *Store) exists(ctx context.Context, op string, where sq.Eq) (bool, error) {
	query, args, err := s.sb.Select("COUNT(*)").From("articles").Where(where).ToSql()
	if err != nil {
		return false, domain.StoreError(op, err)
	}

	var n int
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return false, domain.StoreError(op, err)
	}
	return n > 0, nil
}

// TryClaimSlot inserts article under slot in a single statement. When a unique
// constraint fires nothing is written and the error is domain.ErrAlreadyFilled if
// the slot is taken, otherwise domain.ErrDuplicateSource.
func (s *Store) TryClaimSlot(ctx context.Context, slot domain.SlotDate, article domain.Article) (domain.Article, error) {
	ingestedAt := article.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now()
	}
	ingestedAt = ingestedAt.UTC()

	var published sql.NullTime
	if !article.PublishedAt.IsZero() {
		published = sql.NullTime{Time: article.PublishedAt.UTC(), Valid: true}
	}

	query, args, err := s.sb.Insert("articles").
		Columns(articleColumns[1:]...).
		Values(
			slot.String(), article.FeedID, article.ItemID, article.Title, article.Body,
			article.ImageURL, article.SourceURL, article.NormalizedURL, published, ingestedAt,
			article.WordCount, article.Checksum, article.ExtractionStage,
		).
		Suffix("ON CONFLICT DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.Article{}, domain.StoreError("claim slot", err)
	}

	var id int64
	err = s.db.QueryRowxContext(ctx, query, args...).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		filled, checkErr := s.IsSlotFilled(ctx, slot)
		if checkErr != nil {
			return domain.Article{}, checkErr
		}
		if filled {
			return domain.Article{}, domain.ErrAlreadyFilled
		}
		return domain.Article{}, domain.ErrDuplicateSource
	case err != nil:
		return domain.Article{}, domain.StoreError("claim slot", err)
	}

	article.ID = id
	article.Slot = slot
	article.IngestedAt = ingestedAt
	return article, nil
}

// LatestArticle returns the article with the most recent slot.
func (s *Store) LatestArticle(ctx context.Context) (domain.Article, error) {
	return s.getArticle(ctx, "latest article", s.selectArticles().OrderBy("slot_date DESC").Limit(1))
}

// ArticleBySlot returns the article committed for slot.
func (s *Store) ArticleBySlot(ctx context.Context, slot domain.SlotDate) (domain.Article, error) {
	return s.getArticle(ctx, "article by slot", s.selectArticles().Where(sq.Eq{"slot_date": slot.String()}))
}

// ArticleByID returns a single article.
func (s *Store) ArticleByID(ctx context.Context, id int64) (domain.Article, error) {
	return s.getArticle(ctx, "article by id", s.selectArticles().Where(sq.Eq{"id": id}))
}

// ListArticles pages through articles, newest slot first.
func (s *Store) ListArticles(ctx context.Context, limit, offset int) ([]domain.Article, error) {
	if limit <= 0 {
		return []domain.Article{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	query, args, err := s.selectArticles().
		OrderBy("slot_date DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, domain.StoreError("list articles", err)
	}

	var rows []articleRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, domain.StoreError("list articles", err)
	}

	out := make([]domain.Article, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// CountArticles returns the number of filled slots.
func (s *Store) CountArticles(ctx context.Context) (int, error) {
	query, args, err := s.sb.Select("COUNT(*)").From("articles").ToSql()
	if err != nil {
		return 0, domain.StoreError("count articles", err)
	}

	var n int
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, domain.StoreError("count articles", err)
	}
	return n, nil
}

func (s *Store) selectArticles() sq.SelectBuilder {
	return s.sb.Select(articleColumns...).From("articles")
}

func (s *Store) getArticle(ctx context.Context, op string, b sq.SelectBuilder) (domain.Article, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return domain.Article{}, domain.StoreError(op, err)
	}

	var row articleRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Article{}, domain.ErrNotFound
		}
		return domain.Article{}, domain.StoreError(op, err)
	}
	return row.toDomain(), nil
}
