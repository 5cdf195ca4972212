package scheduler

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"LandingArticles/internal/ports"
)

// CronScheduler runs a single job on a five-field cron spec evaluated in UTC.
// Panicking jobs are recovered and a tick is skipped while the previous one runs.
type CronScheduler struct {
	spec   string
	logger cron.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
func NewCronScheduler(spec string, logger *log.Logger) *CronScheduler {
	l := cron.DiscardLogger
	if logger != nil {
		l = cron.PrintfLogger(logger)
	}
	return &CronScheduler{spec: spec, logger: l}
}

// SpecFromFireAt converts an "HH:MM" UTC time of day into a daily cron spec.
func SpecFromFireAt(fireAt string) (string, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(fireAt), ":")
	if !ok {
		return "", fmt.Errorf("fire time %q: want HH:MM", fireAt)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("fire time %q: bad hour", fireAt)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("fire time %q: bad minute", fireAt)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// Validate checks a cron spec without scheduling anything.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("cron spec %q: %w", spec, err)
	}
	return nil
}

// Start schedules job; the scheduler stops when ctx is cancelled.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	runner := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(c.logger),
		cron.WithChain(cron.Recover(c.logger), cron.SkipIfStillRunning(c.logger)),
	)
	if _, err := runner.AddFunc(c.spec, func() { job(time.Now().UTC()) }); err != nil {
		return fmt.Errorf("schedule %q: %w", c.spec, err)
	}
	runner.Start()
	c.cron = runner

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Next returns the next fire time, or zero when not started.
func (c *CronScheduler) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron == nil {
		return time.Time{}
	}
	entries := c.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop halts scheduling and waits for a running job, bounded by ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}

	select {
	case <-runner.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
