package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"LandingArticles/internal/domain"
	"LandingArticles/internal/ports"
)

// Scheduler wires the cron-like driver with the daily fill.
type Scheduler struct {
	driver   ports.Scheduler
	ingestor *Ingestor
	notifier ports.Notifier
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop the daily tick. notifier may be nil.
func NewScheduler(driver ports.Scheduler, ingestor *Ingestor, notifier ports.Notifier, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{driver: driver, ingestor: ingestor, notifier: notifier, logger: logger}
}

// Start registers the daily fill with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.ingestor == nil {
		return nil
	}

	return s.driver.Start(ctx, func(time.Time) {
		s.Tick(ctx)
	})
}

// Tick fills today's slot and forwards the summary to the notifier.
func (s *Scheduler) Tick(ctx context.Context) domain.RunReport {
	report := s.ingestor.FillToday(ctx, TriggerSchedule)
	if s.notifier == nil {
		return report
	}

	if err := s.notifier.Notify(ctx, Summary(report)); err != nil {
		s.logger.Warn("notify failed", "run_id", report.RunID, "error", err)
	}
	return report
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

// Summary renders a short human-readable line block for a run.
func Summary(report domain.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", report.Slot, report.Outcome)
	if report.Outcome == domain.OutcomeCommitted {
		fmt.Fprintf(&b, "\n%s (feed %d, %s)", report.Title, report.FeedID, report.Stage)
	}
	if report.Error != "" && report.Outcome != domain.OutcomeCommitted {
		fmt.Fprintf(&b, "\n%s", report.Error)
	}
	fmt.Fprintf(&b, "\nattempts: %d, issues: %d", report.Attempts, len(report.Issues))
	return b.String()
}
