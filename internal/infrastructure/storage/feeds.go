package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"LandingArticles/internal/domain"
	"LandingArticles/internal/ports"
)

var _ ports.FeedRepository = (*Store)(nil)

var feedColumns = []string{
	"id", "url", "name", "active", "created_at",
	"last_seen_item_id", "last_seen_published_at", "last_contributed_at",
}

type feedRow struct {
	ID                  int64        `db:"id"`
	URL                 string       `db:"url"`
	Name                string       `db:"name"`
	Active              bool         `db:"active"`
	CreatedAt           time.Time    `db:"created_at"`
	LastSeenItemID      string       `db:"last_seen_item_id"`
	LastSeenPublishedAt sql.NullTime `db:"last_seen_published_at"`
	LastContributedAt   sql.NullTime `db:"last_contributed_at"`
}

func (r feedRow) toDomain() domain.Feed {
	f := domain.Feed{
		ID:        r.ID,
		URL:       r.URL,
		Name:      r.Name,
		Active:    r.Active,
		CreatedAt: r.CreatedAt.UTC(),
		LastSeen:  domain.Marker{ItemID: r.LastSeenItemID},
	}
	if r.LastSeenPublishedAt.Valid {
		f.LastSeen.PublishedAt = r.LastSeenPublishedAt.Time.UTC()
	}
	if r.LastContributedAt.Valid {
		f.LastContributedAt = r.LastContributedAt.Time.UTC()
	}
	return f
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// CreateFeed registers a feed. A URL registered before yields domain.ErrFeedExists.
func (s *Store) CreateFeed(ctx context.Context, feed domain.Feed) (domain.Feed, error) {
	createdAt := feed.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	feed.CreatedAt = createdAt.UTC()

	query, args, err := s.sb.Insert("feeds").
		Columns("url", "name", "active", "created_at").
		Values(strings.TrimSpace(feed.URL), feed.Name, feed.Active, feed.CreatedAt).
		Suffix("ON CONFLICT (url) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.Feed{}, domain.StoreError("create feed", err)
	}

	var id int64
	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Feed{}, domain.ErrFeedExists
		}
		return domain.Feed{}, domain.StoreError("create feed", err)
	}

	feed.ID = id
	feed.URL = strings.TrimSpace(feed.URL)
	return feed, nil
}

// ListFeeds returns every feed in registration order.
func (s *Store) ListFeeds(ctx context.Context) ([]domain.Feed, error) {
	return s.listFeeds(ctx, "list feeds", nil)
}

// ListActiveFeeds returns active feeds in registration order.
func (s *Store) ListActiveFeeds(ctx context.Context) ([]domain.Feed, error) {
	return s.listFeeds(ctx, "list active feeds", sq.Eq{"active": true})
}

func (s *Store) listFeeds(ctx context.Context, op string, where sq.Sqlizer) ([]domain.Feed, error) {
	b := s.sb.Select(feedColumns...).From("feeds").OrderBy("id ASC")
	if where != nil {
		b = b.Where(where)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, domain.StoreError(op, err)
	}

	var rows []feedRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, domain.StoreError(op, err)
	}

	out := make([]domain.Feed, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// FeedByID returns one feed or domain.ErrNotFound.
func (s *Store) FeedByID(ctx context.Context, id int64) (domain.Feed, error) {
	query, args, err := s.sb.Select(feedColumns...).From("feeds").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Feed{}, domain.StoreError("feed by id", err)
	}

	var row feedRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Feed{}, domain.ErrNotFound
		}
		return domain.Feed{}, domain.StoreError("feed by id", err)
	}
	return row.toDomain(), nil
}

// UpdateFeed applies the non-nil fields of update.
func (s *Store) UpdateFeed(ctx context.Context, id int64, update domain.FeedUpdate) (domain.Feed, error) {
	set := map[string]interface{}{}
	if update.Name != nil {
		set["name"] = strings.TrimSpace(*update.Name)
	}
	if update.Active != nil {
		set["active"] = *update.Active
	}
	if len(set) == 0 {
		return s.FeedByID(ctx, id)
	}

	query, args, err := s.sb.Update("feeds").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Feed{}, domain.StoreError("update feed", err)
	}
	if err := s.execOne(ctx, "update feed", query, args...); err != nil {
		return domain.Feed{}, err
	}
	return s.FeedByID(ctx, id)
}

// RemoveFeed deletes a feed, or only deactivates it when articles reference it.
func (s *Store) RemoveFeed(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, domain.StoreError("remove feed", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := s.sb.Select("COUNT(*)").From("articles").Where(sq.Eq{"feed_id": id}).ToSql()
	if err != nil {
		return false, domain.StoreError("remove feed", err)
	}
	var referenced int
	if err := tx.GetContext(ctx, &referenced, query, args...); err != nil {
		return false, domain.StoreError("remove feed", err)
	}

	deactivate := referenced > 0
	if deactivate {
		query, args, err = s.sb.Update("feeds").Set("active", false).Where(sq.Eq{"id": id}).ToSql()
	} else {
		query, args, err = s.sb.Delete("feeds").Where(sq.Eq{"id": id}).ToSql()
	}
	if err != nil {
		return false, domain.StoreError("remove feed", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, domain.StoreError("remove feed", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return false, domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return false, domain.StoreError("remove feed", err)
	}
	return deactivate, nil
}

// RecordLastSeen advances the feed marker and stamps the contribution time. The
// stored publication time never moves backwards; see domain.Marker.Advance.
func (s *Store) RecordLastSeen(ctx context.Context, feedID int64, marker domain.Marker, at time.Time) error {
	update := s.sb.Update("feeds").Set("last_contributed_at", nullTime(at))

	if marker.PublishedAt.IsZero() {
		update = update.Set("last_seen_item_id", marker.ItemID)
	} else {
		published := marker.PublishedAt.UTC()
		update = update.
			Set("last_seen_item_id", sq.Expr(
				"CASE WHEN last_seen_published_at IS NULL OR last_seen_published_at <= ? THEN ? ELSE last_seen_item_id END",
				published, marker.ItemID)).
			Set("last_seen_published_at", sq.Expr(
				"CASE WHEN last_seen_published_at IS NULL OR last_seen_published_at <= ? THEN ? ELSE last_seen_published_at END",
				published, published))
	}

	query, args, err := update.Where(sq.Eq{"id": feedID}).ToSql()
	if err != nil {
		return domain.StoreError("record last seen", err)
	}
	return s.execOne(ctx, "record last seen", query, args...)
}

func (s *Store) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.StoreError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.StoreError(op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
