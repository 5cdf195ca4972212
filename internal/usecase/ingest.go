package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"LandingArticles/internal/domain"
	"LandingArticles/internal/ports"
)

// FeedOrder selects the deterministic order in which active feeds are tried.
type FeedOrder string

const (
	// OrderRegistration tries feeds by ascending ID.
	OrderRegistration FeedOrder = "registration"
	// OrderLeastRecent tries the feed that contributed longest ago first.
	OrderLeastRecent FeedOrder = "least_recent"
)

// Run triggers recorded in reports.
const (
	TriggerSchedule = "schedule"
	TriggerAdmin    = "admin"
	TriggerCLI      = "cli"
)

const (
	DefaultMaxAttempts     = 5
	DefaultMaxBackfillDays = 365
)

// IngestOptions tunes candidate selection.
type IngestOptions struct {
	MaxAttempts     int
	MinWords        int
	AllowUndated    bool
	MaxBackfillDays int
	FeedOrder       FeedOrder
}

// IngestorDeps wires the driven adapters into the orchestrator.
type IngestorDeps struct {
	Store     ports.SlotStore
	Feeds     ports.FeedRegistry
	Source    ports.CandidateSource
	Extractor ports.Extractor
	Clock     ports.Clock
	Observers []ports.RunObserver
	Logger    *slog.Logger
	Options   IngestOptions
}

// Ingestor fills one slot per UTC day from the registered feeds.
type Ingestor struct {
	store     ports.SlotStore
	feeds     ports.FeedRegistry
	source    ports.CandidateSource
	extractor ports.Extractor
	clock     ports.Clock
	observers []ports.RunObserver
	logger    *slog.Logger
	opts      IngestOptions

	backfillMu sync.Mutex
}

// NewIngestor constructs the orchestrator, filling unset options with defaults.
func NewIngestor(deps IngestorDeps) *Ingestor {
	opts := deps.Options
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.MaxBackfillDays <= 0 {
		opts.MaxBackfillDays = DefaultMaxBackfillDays
	}
	if opts.FeedOrder == "" {
		opts.FeedOrder = OrderRegistration
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Ingestor{
		store:     deps.Store,
		feeds:     deps.Feeds,
		source:    deps.Source,
		extractor: deps.Extractor,
		clock:     deps.Clock,
		observers: deps.Observers,
		logger:    logger,
		opts:      opts,
	}
}

// Today is the slot the clock currently points at.
func (i *Ingestor) Today() domain.SlotDate {
	return domain.SlotOf(i.clock.Now())
}

// FillToday fills the slot of the current UTC date.
func (i *Ingestor) FillToday(ctx context.Context, trigger string) domain.RunReport {
	return i.FillSlot(ctx, trigger, i.Today())
}

// Backfill fills the last days slots ending today, oldest first and one at a time.
// Only one backfill may run per process. After a store failure or cancellation the
// remaining dates are reported as skipped.
func (i *Ingestor) Backfill(ctx context.Context, trigger string, days int) ([]domain.RunReport, error) {
	return i.BackfillEnding(ctx, trigger, i.Today(), days)
}

// BackfillEnding is Backfill over the days slots ending at end. end must not lie
// after today.
func (i *Ingestor) BackfillEnding(ctx context.Context, trigger string, end domain.SlotDate, days int) ([]domain.RunReport, error) {
	if days < 1 || days > i.opts.MaxBackfillDays {
		return nil, fmt.Errorf("%w: %d not in 1..%d", domain.ErrInvalidDays, days, i.opts.MaxBackfillDays)
	}
	if today := i.Today(); end.Time().IsZero() || end.Time().After(today.Time()) {
		return nil, fmt.Errorf("%w: end date %q must be a date not after %s", domain.ErrInvalidDays, end, today)
	}
	if !i.backfillMu.TryLock() {
		return nil, domain.ErrBackfillRunning
	}
	defer i.backfillMu.Unlock()

	slots := domain.SlotRange(end, days)
	reports := make([]domain.RunReport, 0, len(slots))
	var abort string

	for _, slot := range slots {
		if abort != "" {
			now := i.clock.Now()
			reports = append(reports, domain.RunReport{
				RunID:      uuid.NewString(),
				Trigger:    trigger,
				Slot:       slot,
				Outcome:    domain.OutcomeSkipped,
				Error:      abort,
				StartedAt:  now,
				FinishedAt: now,
			})
			continue
		}

		report := i.FillSlot(ctx, trigger, slot)
		reports = append(reports, report)
		if report.Outcome.Failed() {
			abort = fmt.Sprintf("aborted after %s on %s", report.Outcome, slot)
		}
	}

	i.logger.Info("backfill finished", "trigger", trigger, "end", end.String(), "days", days, "committed", countCommitted(reports))
	return reports, nil
}

// FillSlot runs the single-date orchestration for slot. The outcome and every
// recovered problem are carried by the report.
func (i *Ingestor) FillSlot(ctx context.Context, trigger string, slot domain.SlotDate) domain.RunReport {
	report := domain.RunReport{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		Slot:      slot,
		StartedAt: i.clock.Now(),
	}
	log := i.logger.With("run_id", report.RunID, "slot", slot.String(), "trigger", trigger)

	i.fill(ctx, log, &report)

	report.FinishedAt = i.clock.Now()
	i.observe(log, report)
	return report
}

func (i *Ingestor) fill(ctx context.Context, log *slog.Logger, report *domain.RunReport) {
	slot := report.Slot

	filled, err := i.store.IsSlotFilled(ctx, slot)
	if err != nil {
		i.fail(report, err)
		return
	}
	if filled {
		report.Outcome = domain.OutcomeAlreadyFilled
		return
	}

	feeds, err := i.feeds.ListActiveFeeds(ctx)
	if err != nil {
		i.fail(report, err)
		return
	}
	i.orderFeeds(feeds)

	for _, feed := range feeds {
		if err := ctx.Err(); err != nil {
			i.fail(report, err)
			return
		}

		candidates, err := i.candidates(ctx, feed)
		if err != nil {
			if ctx.Err() != nil {
				i.fail(report, ctx.Err())
				return
			}
			log.Warn("feed unavailable", "feed_id", feed.ID, "url", feed.URL, "error", err)
			report.AddIssue(domain.IssueSourceUnavailable, feed.ID, "", err)
			continue
		}

		for _, item := range candidates {
			if err := ctx.Err(); err != nil {
				i.fail(report, err)
				return
			}
			if report.Attempts >= i.opts.MaxAttempts {
				report.Outcome = domain.OutcomeNoCandidate
				report.Error = fmt.Sprintf("%s: attempt cap %d reached", domain.ErrNoCandidateFound, i.opts.MaxAttempts)
				return
			}

			done := i.tryCandidate(ctx, log, report, feed, item)
			if done {
				return
			}
		}
	}

	report.Outcome = domain.OutcomeNoCandidate
	report.Error = domain.ErrNoCandidateFound.Error()
}

// tryCandidate extracts and commits one item. It reports whether the run is over.
func (i *Ingestor) tryCandidate(ctx context.Context, log *slog.Logger, report *domain.RunReport, feed domain.Feed, item domain.CandidateItem) bool {
	normalized := domain.NormalizeURL(item.SourceURL)
	seen, err := i.store.HasSourceURL(ctx, normalized)
	if err != nil {
		i.fail(report, err)
		return true
	}
	if seen {
		report.AddIssue(domain.IssueDuplicate, feed.ID, item.ID, domain.ErrDuplicateSource)
		return false
	}

	report.Attempts++
	ext, err := i.extractor.Extract(ctx, ports.ExtractionInput{RawContent: item.RawContent, SourceURL: item.SourceURL})
	if err != nil {
		if ctx.Err() != nil {
			i.fail(report, ctx.Err())
			return true
		}
		log.Debug("candidate rejected", "feed_id", feed.ID, "item_id", item.ID, "error", err)
		report.AddIssue(domain.IssueExtraction, feed.ID, item.ID, err)
		return false
	}

	article := buildArticle(report.Slot, item, normalized, ext, i.clock.Now())
	if article.WordCount < i.opts.MinWords {
		report.AddIssue(domain.IssueExtraction, feed.ID, item.ID,
			fmt.Errorf("%w: %d words, need %d", domain.ErrExtractionFailure, article.WordCount, i.opts.MinWords))
		return false
	}

	committed, err := i.store.TryClaimSlot(ctx, report.Slot, article)
	switch {
	case errors.Is(err, domain.ErrAlreadyFilled):
		report.Outcome = domain.OutcomeAlreadyFilled
		return true
	case errors.Is(err, domain.ErrDuplicateSource):
		report.AddIssue(domain.IssueDuplicate, feed.ID, item.ID, err)
		return false
	case err != nil:
		i.fail(report, err)
		return true
	}

	report.Outcome = domain.OutcomeCommitted
	report.ArticleID = committed.ID
	report.FeedID = feed.ID
	report.ItemID = item.ID
	report.Title = committed.Title
	report.Stage = committed.ExtractionStage

	marker := domain.Marker{ItemID: item.ID, PublishedAt: item.PublishedAt}
	if err := i.feeds.RecordLastSeen(ctx, feed.ID, marker, committed.IngestedAt); err != nil {
		log.Warn("marker not advanced", "feed_id", feed.ID, "error", err)
		report.AddIssue(domain.IssueMarker, feed.ID, item.ID, err)
	}
	return true
}

// candidates returns the feed items after its marker, oldest first. Undated items
// follow the dated ones when allowed.
func (i *Ingestor) candidates(ctx context.Context, feed domain.Feed) ([]domain.CandidateItem, error) {
	items, err := i.source.FetchCandidates(ctx, feed)
	if err != nil {
		return nil, err
	}

	var dated, undated []domain.CandidateItem
	for item := range items {
		if item.FeedID == 0 {
			item.FeedID = feed.ID
		}
		if !feed.LastSeen.Admits(item) {
			continue
		}
		if item.Dated() {
			dated = append(dated, item)
		} else if i.opts.AllowUndated {
			undated = append(undated, item)
		}
	}

	slices.SortStableFunc(dated, func(a, b domain.CandidateItem) int {
		return a.PublishedAt.Compare(b.PublishedAt)
	})
	return append(dated, undated...), nil
}

func (i *Ingestor) orderFeeds(feeds []domain.Feed) {
	switch i.opts.FeedOrder {
	case OrderLeastRecent:
		slices.SortStableFunc(feeds, func(a, b domain.Feed) int {
			if c := a.LastContributedAt.Compare(b.LastContributedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
	default:
		slices.SortStableFunc(feeds, func(a, b domain.Feed) int {
			return cmp.Compare(a.ID, b.ID)
		})
	}
}

func (i *Ingestor) fail(report *domain.RunReport, err error) {
	report.Error = err.Error()
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		report.Outcome = domain.OutcomeCancelled
	default:
		report.Outcome = domain.OutcomeStoreUnavailable
	}
}

func (i *Ingestor) observe(log *slog.Logger, report domain.RunReport) {
	attrs := []any{
		"outcome", report.Outcome,
		"attempts", report.Attempts,
		"issues", len(report.Issues),
		"duration", report.Duration(),
	}
	switch {
	case report.Outcome == domain.OutcomeCommitted:
		log.Info("slot filled", append(attrs, "article_id", report.ArticleID, "feed_id", report.FeedID, "stage", report.Stage)...)
	case report.Outcome.Failed():
		log.Error("slot run failed", append(attrs, "error", report.Error)...)
	default:
		log.Info("slot run finished", attrs...)
	}

	for _, o := range i.observers {
		o.ObserveRun(report)
	}
}

func countCommitted(reports []domain.RunReport) int {
	n := 0
	for _, r := range reports {
		if r.Outcome == domain.OutcomeCommitted {
			n++
		}
	}
	return n
}
