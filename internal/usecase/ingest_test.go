package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LandingArticles/internal/clock"
	"LandingArticles/internal/domain"
	"LandingArticles/internal/ports"
)

var now = time.Date(2025, time.March, 10, 2, 0, 0, 0, time.UTC)

const today = domain.SlotDate("2025-03-10")

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func candidate(feedID int64, n int, published time.Time) domain.CandidateItem {
	return domain.CandidateItem{
		FeedID:      feedID,
		ID:          fmt.Sprintf("feed%d-item-%d", feedID, n),
		Title:       fmt.Sprintf("Story %d", n),
		PublishedAt: published,
		RawContent:  "<p>teaser</p>",
		SourceURL:   fmt.Sprintf("https://feed%d.example/story-%d?utm_source=rss", feedID, n),
	}
}

type harness struct {
	store     *memStore
	source    *fakeSource
	extractor *fakeExtractor
	observed  *recorder
	ingestor  *Ingestor
}

func newHarness(opts IngestOptions, feeds ...domain.Feed) *harness {
	h := &harness{
		store:     newMemStore(feeds...),
		source:    &fakeSource{items: map[int64][]domain.CandidateItem{}, errs: map[int64]error{}},
		extractor: &fakeExtractor{bodies: map[string]string{}},
		observed:  &recorder{},
	}
	h.ingestor = NewIngestor(IngestorDeps{
		Store:     h.store,
		Feeds:     h.store,
		Source:    h.source,
		Extractor: h.extractor,
		Clock:     clock.Fixed(now),
		Observers: []ports.RunObserver{h.observed},
		Options:   opts,
	})
	return h
}

// offer registers items and makes them all extractable.
func (h *harness) offer(items ...domain.CandidateItem) {
	for _, it := range items {
		h.source.items[it.FeedID] = append(h.source.items[it.FeedID], it)
		h.extractor.bodies[it.SourceURL] = "# Heading\n\n" + words(40)
	}
}

func activeFeed(id int64) domain.Feed {
	return domain.Feed{ID: id, URL: fmt.Sprintf("https://feed%d.example/rss", id), Active: true}
}

func TestFillTodayCommitsOneArticleAndKeepsTheRest(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	items := []domain.CandidateItem{
		candidate(1, 1, now.Add(-72*time.Hour)),
		candidate(1, 2, now.Add(-48*time.Hour)),
		candidate(1, 3, now.Add(-24*time.Hour)),
	}
	h.offer(items...)

	report := h.ingestor.FillToday(context.Background(), TriggerSchedule)
	require.Equal(t, domain.OutcomeCommitted, report.Outcome, report.Error)
	assert.Equal(t, today, report.Slot)
	assert.Equal(t, 1, h.store.count())
	assert.Equal(t, items[0].ID, report.ItemID)
	assert.NotEmpty(t, report.RunID)

	marker := h.store.feed(1).LastSeen
	assert.Equal(t, items[0].ID, marker.ItemID)
	assert.Equal(t, items[0].PublishedAt, marker.PublishedAt)
	assert.Equal(t, now, h.store.feed(1).LastContributedAt)

	article, ok := h.store.article(today)
	require.True(t, ok)
	assert.Equal(t, "https://feed1.example/story-1", article.NormalizedURL)
	assert.Equal(t, "Story 1", article.Title)
	assert.Equal(t, "density", article.ExtractionStage)

	// The other two items remain available for the following days.
	second := h.ingestor.FillSlot(context.Background(), TriggerSchedule, today.AddDays(1))
	third := h.ingestor.FillSlot(context.Background(), TriggerSchedule, today.AddDays(2))
	assert.Equal(t, items[1].ID, second.ItemID)
	assert.Equal(t, items[2].ID, third.ItemID)

	fourth := h.ingestor.FillSlot(context.Background(), TriggerSchedule, today.AddDays(3))
	assert.Equal(t, domain.OutcomeNoCandidate, fourth.Outcome)
	assert.Equal(t, 3, h.store.count())
}

func TestFillTodayAlreadyFilledSkipsFeeds(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	h.offer(candidate(1, 1, now.Add(-time.Hour)))
	h.store.articles[today] = domain.Article{ID: 99, Slot: today}

	report := h.ingestor.FillToday(context.Background(), TriggerSchedule)
	assert.Equal(t, domain.OutcomeAlreadyFilled, report.Outcome)
	assert.Equal(t, 0, h.source.fetchCount())
	assert.Equal(t, 0, h.extractor.callCount())
	assert.Equal(t, 1, h.store.count())
}

func TestBackfillWithTwoCandidatesLeavesNewestDateEmpty(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	h.offer(candidate(1, 1, now.Add(-30*time.Hour)), candidate(1, 2, now.Add(-20*time.Hour)))

	reports, err := h.ingestor.Backfill(context.Background(), TriggerAdmin, 3)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Equal(t, domain.SlotDate("2025-03-08"), reports[0].Slot)
	assert.Equal(t, domain.SlotDate("2025-03-09"), reports[1].Slot)
	assert.Equal(t, today, reports[2].Slot)

	assert.Equal(t, domain.OutcomeCommitted, reports[0].Outcome)
	assert.Equal(t, domain.OutcomeCommitted, reports[1].Outcome)
	assert.Equal(t, domain.OutcomeNoCandidate, reports[2].Outcome)
	assert.Equal(t, 2, h.store.count())
}

func TestBackfillIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	h.offer(candidate(1, 1, now.Add(-30*time.Hour)), candidate(1, 2, now.Add(-20*time.Hour)))

	first, err := h.ingestor.Backfill(context.Background(), TriggerAdmin, 3)
	require.NoError(t, err)
	second, err := h.ingestor.Backfill(context.Background(), TriggerAdmin, 3)
	require.NoError(t, err)

	for i := range first {
		if first[i].Outcome == domain.OutcomeCommitted {
			assert.Equal(t, domain.OutcomeAlreadyFilled, second[i].Outcome, second[i].Slot)
		}
	}
	assert.Equal(t, 2, h.store.count())
}

func TestMalformedFeedYieldsNoCandidate(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	h.source.errs[1] = fmt.Errorf("parse feed: unexpected EOF")

	report := h.ingestor.FillToday(context.Background(), TriggerSchedule)
	assert.Equal(t, domain.OutcomeNoCandidate, report.Outcome)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, domain.IssueSourceUnavailable, report.Issues[0].Kind)
	assert.Equal(t, int64(1), report.Issues[0].FeedID)
	assert.Equal(t, 0, h.store.count())
}

func TestUnextractableItemsYieldNoCandidate(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	for n := 1; n <= 3; n++ {
		h.source.items[1] = append(h.source.items[1], candidate(1, n, now.Add(-time.Duration(n)*time.Hour)))
	}

	report := h.ingestor.FillToday(context.Background(), TriggerSchedule)
	assert.Equal(t, domain.OutcomeNoCandidate, report.Outcome)
	assert.Equal(t, 3, report.Attempts)
	assert.Len(t, report.Issues, 3)
	for _, issue := range report.Issues {
		assert.Equal(t, domain.IssueExtraction, issue.Kind)
	}
	assert.Equal(t, 0, h.store.count())
	assert.True(t, h.store.feed(1).LastSeen.IsZero())
}

func TestCandidateOrderIsDeterministic(t *testing.T) {
	t.Parallel()

	pick := func() string {
		h := newHarness(IngestOptions{}, activeFeed(2), activeFeed(1))
		h.offer(candidate(2, 1, now.Add(-time.Hour)), candidate(1, 1, now.Add(-5*time.Hour)), candidate(1, 2, now.Add(-4*time.Hour)))
		return h.ingestor.FillToday(context.Background(), TriggerSchedule).ItemID
	}

	first := pick()
	assert.Equal(t, "feed1-item-1", first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, pick())
	}
}

func TestLeastRecentFeedOrder(t *testing.T) {
	t.Parallel()

	recent := activeFeed(1)
	recent.LastContributedAt = now.Add(-24 * time.Hour)
	stale := activeFeed(2)
	stale.LastContributedAt = now.Add(-240 * time.Hour)
	never := activeFeed(3)

	h := newHarness(IngestOptions{FeedOrder: OrderLeastRecent}, recent, stale, never)
	h.offer(candidate(1, 1, now.Add(-time.Hour)), candidate(2, 1, now.Add(-time.Hour)), candidate(3, 1, now.Add(-time.Hour)))

	assert.Equal(t, int64(3), h.ingestor.FillSlot(context.Background(), TriggerCLI, today).FeedID)

	h.store.feeds[2].Active = false
	assert.Equal(t, int64(2), h.ingestor.FillSlot(context.Background(), TriggerCLI, today.AddDays(1)).FeedID)
}

func TestMarkerSkipsOlderItems(t *testing.T) {
	t.Parallel()

	feed := activeFeed(1)
	feed.LastSeen = domain.Marker{ItemID: "feed1-item-2", PublishedAt: now.Add(-10 * time.Hour)}
	h := newHarness(IngestOptions{}, feed)
	h.offer(
		candidate(1, 1, now.Add(-20*time.Hour)),
		candidate(1, 2, now.Add(-10*time.Hour)),
		candidate(1, 3, now.Add(-5*time.Hour)),
	)

	report := h.ingestor.FillToday(context.Background(), TriggerSchedule)
	assert.Equal(t, "feed1-item-3", report.ItemID)
	assert.Equal(t, 1, h.extractor.callCount())
}

func TestAttemptCapEndsRun(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{MaxAttempts: 3}, activeFeed(1), activeFeed(2))
	for n := 1; n <= 4; n++ {
		h.source.items[1] = append(h.source.items[1], candidate(1, n, now.Add(-time.Duration(n)*time.Hour)))
	}
	h.offer(candidate(2, 1, now.Add(-time.Hour)))

	report := h.ingestor.FillToday(context.Background(), TriggerSchedule)
	assert.Equal(t, domain.OutcomeNoCandidate, report.Outcome)
	assert.Equal(t, 3, report.Attempts)
	assert.Equal(t, 3, h.extractor.callCount())
	assert.Contains(t, report.Error, "attempt cap")
	assert.Equal(t, 0, h.store.count())
}

func TestStoredSourceIsSkippedWithoutAttempt(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	h.offer(candidate(1, 1, now.Add(-2*time.Hour)), candidate(1, 2, now.Add(-time.Hour)))
	h.store.urls["https://feed1.example/story-1"] = true

	report := h.ingestor.FillToday(context.Background(), TriggerSchedule)
	require.Equal(t, domain.OutcomeCommitted, report.Outcome)
	assert.Equal(t, "feed1-item-2", report.ItemID)
	assert.Equal(t, 1, report.Attempts)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, domain.IssueDuplicate, report.Issues[0].Kind)
}

func TestLostRaceDiscardsContent(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	h.offer(candidate(1, 1, now.Add(-time.Hour)), candidate(1, 2, now.Add(-time.Minute)))
	h.store.claimErr = domain.ErrAlreadyFilled

	report := h.ingestor.FillToday(context.Background(), TriggerSchedule)
	assert.Equal(t, domain.OutcomeAlreadyFilled, report.Outcome)
	assert.Equal(t, 1, h.store.claimCalls)
	assert.True(t, h.store.feed(1).LastSeen.IsZero())
}

func TestStoreFailureIsFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	h.offer(candidate(1, 1, now.Add(-time.Hour)))
	h.store.feedsErr = domain.StoreError("list active feeds", errBoom)

	report := h.ingestor.FillToday(context.Background(), TriggerSchedule)
	assert.Equal(t, domain.OutcomeStoreUnavailable, report.Outcome)
	assert.True(t, report.Outcome.Failed())
	assert.Contains(t, report.Error, "boom")
}

func TestBackfillSkipsRemainingDatesAfterStoreFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	h.offer(candidate(1, 1, now.Add(-time.Hour)))
	h.store.claimErr = domain.StoreError("claim slot", errBoom)

	reports, err := h.ingestor.Backfill(context.Background(), TriggerAdmin, 3)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, domain.OutcomeStoreUnavailable, reports[0].Outcome)
	assert.Equal(t, domain.OutcomeSkipped, reports[1].Outcome)
	assert.Equal(t, domain.OutcomeSkipped, reports[2].Outcome)
	assert.Equal(t, 1, h.store.claimCalls)
	assert.Len(t, h.observed.reports, 1)
}

func TestMarkerFailureKeepsCommit(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	h.offer(candidate(1, 1, now.Add(-time.Hour)))
	h.store.markerErr = domain.StoreError("record last seen", errBoom)

	report := h.ingestor.FillToday(context.Background(), TriggerSchedule)
	assert.Equal(t, domain.OutcomeCommitted, report.Outcome)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, domain.IssueMarker, report.Issues[0].Kind)
	assert.Equal(t, 1, h.store.count())
}

func TestCancelledRun(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	h.offer(candidate(1, 1, now.Add(-time.Hour)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := h.ingestor.FillToday(ctx, TriggerSchedule)
	assert.Equal(t, domain.OutcomeCancelled, report.Outcome)
	assert.Equal(t, 0, h.store.count())
}

func TestBackfillValidatesDays(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{MaxBackfillDays: 10}, activeFeed(1))
	for _, days := range []int{0, -1, 11} {
		_, err := h.ingestor.Backfill(context.Background(), TriggerAdmin, days)
		assert.ErrorIs(t, err, domain.ErrInvalidDays, days)
	}
}

func TestBackfillEndingAtPastDate(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	h.offer(candidate(1, 1, now.Add(-48*time.Hour)), candidate(1, 2, now.Add(-24*time.Hour)))

	end := today.AddDays(-5)
	reports, err := h.ingestor.BackfillEnding(context.Background(), TriggerAdmin, end, 2)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, today.AddDays(-6), reports[0].Slot)
	assert.Equal(t, end, reports[1].Slot)
	assert.Equal(t, domain.OutcomeCommitted, reports[1].Outcome)

	_, err = h.ingestor.BackfillEnding(context.Background(), TriggerAdmin, today.AddDays(1), 1)
	assert.ErrorIs(t, err, domain.ErrInvalidDays)
	_, err = h.ingestor.BackfillEnding(context.Background(), TriggerAdmin, "", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidDays)
}

func TestBackfillRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	h.offer(candidate(1, 1, now.Add(-time.Hour)))
	h.extractor.block = make(chan struct{})
	h.extractor.entered = make(chan struct{}, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.ingestor.Backfill(context.Background(), TriggerAdmin, 2)
	}()
	<-h.extractor.entered

	_, err := h.ingestor.Backfill(context.Background(), TriggerAdmin, 1)
	assert.ErrorIs(t, err, domain.ErrBackfillRunning)

	close(h.extractor.block)
	<-done
}

func TestUndatedItemsNeedOptIn(t *testing.T) {
	t.Parallel()

	undated := candidate(1, 1, time.Time{})

	h := newHarness(IngestOptions{}, activeFeed(1))
	h.offer(undated)
	assert.Equal(t, domain.OutcomeNoCandidate, h.ingestor.FillToday(context.Background(), TriggerSchedule).Outcome)
	assert.Equal(t, 0, h.extractor.callCount())

	h = newHarness(IngestOptions{AllowUndated: true}, activeFeed(1))
	h.offer(undated, candidate(1, 2, now.Add(-time.Hour)))
	first := h.ingestor.FillToday(context.Background(), TriggerSchedule)
	assert.Equal(t, "feed1-item-2", first.ItemID, "dated items come first")
}

func TestUndatedCommitKeepsRejectedItemsBehindMarker(t *testing.T) {
	t.Parallel()

	rejected := candidate(1, 1, now.Add(-3*time.Hour))
	dated := candidate(1, 2, now.Add(-time.Hour))
	undated := candidate(1, 3, time.Time{})

	h := newHarness(IngestOptions{AllowUndated: true}, activeFeed(1))
	h.offer(rejected, dated, undated)
	delete(h.extractor.bodies, rejected.SourceURL)

	ctx := context.Background()
	first := h.ingestor.FillSlot(ctx, TriggerCLI, today.AddDays(-2))
	require.Equal(t, domain.OutcomeCommitted, first.Outcome)
	assert.Equal(t, dated.ID, first.ItemID)

	second := h.ingestor.FillSlot(ctx, TriggerCLI, today.AddDays(-1))
	require.Equal(t, domain.OutcomeCommitted, second.Outcome)
	assert.Equal(t, undated.ID, second.ItemID)
	assert.Equal(t, domain.Marker{ItemID: undated.ID, PublishedAt: dated.PublishedAt}, h.store.feed(1).LastSeen)

	third := h.ingestor.FillSlot(ctx, TriggerCLI, today)
	assert.Equal(t, domain.OutcomeNoCandidate, third.Outcome)
	assert.Equal(t, 3, h.extractor.callCount(), "the rejected item is tried once")
}

func TestMinWordsRejectsShortBodies(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{MinWords: 100}, activeFeed(1))
	h.offer(candidate(1, 1, now.Add(-2*time.Hour)), candidate(1, 2, now.Add(-time.Hour)))
	h.extractor.bodies["https://feed1.example/story-2?utm_source=rss"] = words(150)

	report := h.ingestor.FillToday(context.Background(), TriggerSchedule)
	require.Equal(t, domain.OutcomeCommitted, report.Outcome)
	assert.Equal(t, "feed1-item-2", report.ItemID)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0].Reason, "words")
}

func TestConcurrentFillsCommitOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	for n := 1; n <= 8; n++ {
		h.offer(candidate(1, n, now.Add(-time.Duration(n)*time.Hour)))
	}

	var wg sync.WaitGroup
	outcomes := make([]domain.Outcome, 8)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = h.ingestor.FillToday(context.Background(), TriggerAdmin).Outcome
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, o := range outcomes {
		if o == domain.OutcomeCommitted {
			committed++
		} else {
			assert.Equal(t, domain.OutcomeAlreadyFilled, o)
		}
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, h.store.count())
}

func TestObserversSeeEveryRun(t *testing.T) {
	t.Parallel()

	h := newHarness(IngestOptions{}, activeFeed(1))
	h.offer(candidate(1, 1, now.Add(-time.Hour)))

	_, err := h.ingestor.Backfill(context.Background(), TriggerAdmin, 2)
	require.NoError(t, err)
	require.Len(t, h.observed.reports, 2)
	assert.Equal(t, TriggerAdmin, h.observed.reports[0].Trigger)
	assert.Equal(t, now, h.observed.reports[0].StartedAt)
}
