package usecase

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"time"

	"LandingArticles/internal/domain"
	"LandingArticles/internal/ports"
)

// memStore is an in-memory slot store and feed registry with the same uniqueness
// rules as the SQL schema.
type memStore struct {
	mu       sync.Mutex
	articles map[domain.SlotDate]domain.Article
	urls     map[string]bool
	feeds    []domain.Feed
	nextID   int64

	claimErr   error
	feedsErr   error
	markerErr  error
	claimCalls int
}

func newMemStore(feeds ...domain.Feed) *memStore {
	return &memStore{
		articles: map[domain.SlotDate]domain.Article{},
		urls:     map[string]bool{},
		feeds:    feeds,
	}
}

func (m *memStore) IsSlotFilled(_ context.Context, slot domain.SlotDate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.articles[slot]
	return ok, nil
}

func (m *memStore) TryClaimSlot(_ context.Context, slot domain.SlotDate, a domain.Article) (domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimCalls++
	if m.claimErr != nil {
		return domain.Article{}, m.claimErr
	}
	if _, ok := m.articles[slot]; ok {
		return domain.Article{}, domain.ErrAlreadyFilled
	}
	if m.urls[a.NormalizedURL] {
		return domain.Article{}, domain.ErrDuplicateSource
	}
	m.nextID++
	a.ID = m.nextID
	a.Slot = slot
	m.articles[slot] = a
	m.urls[a.NormalizedURL] = true
	return a, nil
}

func (m *memStore) HasSourceURL(_ context.Context, normalizedURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.urls[normalizedURL], nil
}

func (m *memStore) ListActiveFeeds(context.Context) ([]domain.Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.feedsErr != nil {
		return nil, m.feedsErr
	}
	var out []domain.Feed
	for _, f := range m.feeds {
		if f.Active {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memStore) RecordLastSeen(_ context.Context, feedID int64, marker domain.Marker, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markerErr != nil {
		return m.markerErr
	}
	for i := range m.feeds {
		if m.feeds[i].ID == feedID {
			m.feeds[i].LastSeen = m.feeds[i].LastSeen.Advance(marker)
			m.feeds[i].LastContributedAt = at
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) feed(id int64) domain.Feed {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.feeds {
		if f.ID == id {
			return f
		}
	}
	return domain.Feed{}
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.articles)
}

func (m *memStore) article(slot domain.SlotDate) (domain.Article, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[slot]
	return a, ok
}

// fakeSource serves fixed items per feed, newest first, and counts fetches.
type fakeSource struct {
	mu      sync.Mutex
	items   map[int64][]domain.CandidateItem
	errs    map[int64]error
	fetches int
}

func (f *fakeSource) FetchCandidates(_ context.Context, feed domain.Feed) (iter.Seq[domain.CandidateItem], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if err := f.errs[feed.ID]; err != nil {
		return nil, &domain.SourceError{FeedURL: feed.URL, Err: err}
	}
	items := slices.Clone(f.items[feed.ID])
	slices.SortStableFunc(items, func(a, b domain.CandidateItem) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	return slices.Values(items), nil
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// fakeExtractor returns a fixed body per source URL; unknown URLs fail.
type fakeExtractor struct {
	mu     sync.Mutex
	bodies map[string]string
	calls   []string
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, in ports.ExtractionInput) (ports.Extraction, error) {
	if f.block != nil {
		if f.entered != nil {
			select {
			case f.entered <- struct{}{}:
			default:
			}
		}
		select {
		case <-f.block:
		case <-ctx.Done():
			return ports.Extraction{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in.SourceURL)
	body, ok := f.bodies[in.SourceURL]
	if !ok {
		return ports.Extraction{}, &domain.ExtractionError{
			SourceURL: in.SourceURL,
			Failures:  []domain.StageFailure{{Stage: "density", Reason: "no text-dense block found"}},
		}
	}
	return ports.Extraction{Markdown: body, Stage: "density", Title: "Page title", ImageURL: "https://img.example/og.png"}, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recorder struct {
	mu      sync.Mutex
	reports []domain.RunReport
}

func (r *recorder) ObserveRun(report domain.RunReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *fakeNotifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return n.err
}

var errBoom = errors.New("boom")
