package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"LandingArticles/internal/domain"
	"LandingArticles/internal/ports"
)

// FeedService implements the admin operations on the feed registry.
type FeedService struct {
	repo   ports.FeedRepository
	clock  ports.Clock
	logger *slog.Logger
}

// NewFeedService wires the feed repository.
func NewFeedService(repo ports.FeedRepository, clock ports.Clock, logger *slog.Logger) *FeedService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FeedService{repo: repo, clock: clock, logger: logger}
}

// Register adds an active feed. The name defaults to the feed host.
func (s *FeedService) Register(ctx context.Context, rawURL, name string) (domain.Feed, error) {
	u, err := validateFeedURL(rawURL)
	if err != nil {
		return domain.Feed{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = u.Hostname()
	}

	feed, err := s.repo.CreateFeed(ctx, domain.Feed{
		URL:       u.String(),
		Name:      name,
		Active:    true,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return domain.Feed{}, err
	}

	s.logger.Info("feed registered", "feed_id", feed.ID, "url", feed.URL)
	return feed, nil
}

// List returns every registered feed.
func (s *FeedService) List(ctx context.Context) ([]domain.Feed, error) {
	return s.repo.ListFeeds(ctx)
}

// Get returns one feed.
func (s *FeedService) Get(ctx context.Context, id int64) (domain.Feed, error) {
	return s.repo.FeedByID(ctx, id)
}

// Update renames, activates or deactivates a feed.
func (s *FeedService) Update(ctx context.Context, id int64, update domain.FeedUpdate) (domain.Feed, error) {
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return domain.Feed{}, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidFeed)
	}

	feed, err := s.repo.UpdateFeed(ctx, id, update)
	if err != nil {
		return domain.Feed{}, err
	}

	s.logger.Info("feed updated", "feed_id", feed.ID, "active", feed.Active, "name", feed.Name)
	return feed, nil
}

// Remove deletes a feed, or deactivates it when articles still reference it.
func (s *FeedService) Remove(ctx context.Context, id int64) (bool, error) {
	deactivated, err := s.repo.RemoveFeed(ctx, id)
	if err != nil {
		return false, err
	}

	s.logger.Info("feed removed", "feed_id", id, "soft", deactivated)
	return deactivated, nil
}

func validateFeedURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: url is required", domain.ErrInvalidFeed)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidFeed, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) url", domain.ErrInvalidFeed, raw)
	}
	u.Fragment = ""
	return u, nil
}
