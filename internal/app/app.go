package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"LandingArticles/internal/clock"
	"LandingArticles/internal/config"
	"LandingArticles/internal/extraction"
	"LandingArticles/internal/infrastructure/feed"
	"LandingArticles/internal/infrastructure/fetcher"
	"LandingArticles/internal/infrastructure/httpapi"
	"LandingArticles/internal/infrastructure/parser"
	"LandingArticles/internal/infrastructure/scheduler"
	"LandingArticles/internal/infrastructure/storage"
	"LandingArticles/internal/infrastructure/telegram"
	"LandingArticles/internal/logging"
	"LandingArticles/internal/metrics"
	"LandingArticles/internal/ports"
	"LandingArticles/internal/usecase"
	"LandingArticles/pkg/logger"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	store     *storage.Store
	ingestor  *usecase.Ingestor
	feeds     *usecase.FeedService
	metrics   *metrics.Recorder
	scheduler *usecase.Scheduler
	cron      *scheduler.CronScheduler
	router    *gin.Engine
}

// Option overrides collaborators, mostly for tests.
type Option func(*options)

type options struct {
	clock       ports.Clock
	telegramURL string
}

// WithClock replaces the wall clock.
func WithClock(c ports.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithTelegramBaseURL points the notifier at another Bot API host.
func WithTelegramBaseURL(baseURL string) Option {
	return func(o *options) { o.telegramURL = baseURL }
}

// New opens and migrates the store and builds every component from cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts ...Option) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	o := options{clock: clock.System{}}
	for _, opt := range opts {
		opt(&o)
	}

	cronSpec, err := CronSpec(cfg.Scheduler)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	applied, err := store.Migrate()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if applied {
		baseLogger.Info("database migrated", "driver", cfg.Database.Driver)
	}

	recorder := metrics.NewRecorder()
	limiter := fetcher.NewHostLimiter(cfg.Fetch.HostInterval)

	feedClient := fetcher.NewHTTPClient(fetcher.ClientOptions{Timeout: cfg.Fetch.FeedTimeout, MaxRedirects: cfg.Fetch.MaxRedirects})
	source := feed.NewSource(feedClient, feed.Options{
		UserAgent: cfg.Fetch.UserAgent,
		MaxItems:  cfg.Ingest.MaxItemsPerFeed,
		MaxBytes:  cfg.Fetch.MaxBodyBytes,
		Limiter:   limiter,
	})

	pageClient := fetcher.NewHTTPClient(fetcher.ClientOptions{Timeout: cfg.Fetch.PageTimeout, MaxRedirects: cfg.Fetch.MaxRedirects})
	var robots *fetcher.RobotsChecker
	if cfg.Fetch.RespectRobots {
		robots = fetcher.NewRobotsChecker(pageClient, cfg.Fetch.UserAgent, cfg.Fetch.RobotsTTL)
	}
	pages := parser.NewPageFetcher(pageClient, parser.PageFetcherOptions{
		UserAgent: cfg.Fetch.UserAgent,
		MaxBytes:  cfg.Fetch.MaxBodyBytes,
		Limiter:   limiter,
		Robots:    robots,
	})

	converter := parser.NewMarkdownConverter()
	engine := extraction.NewEngine(pages, baseLogger.With("component", "extraction"),
		parser.NewDirectStage(converter, cfg.Extraction.MinRawContentChars),
		parser.NewDensityStage(converter, cfg.Extraction.MinExtractedChars),
		parser.NewReadabilityStage(converter, cfg.Extraction.MinExtractedChars),
	)
	baseLogger.Info("extraction chain ready", "stages", engine.Stages())

	ingestor := usecase.NewIngestor(usecase.IngestorDeps{
		Store:     store,
		Feeds:     store,
		Source:    source,
		Extractor: engine,
		Clock:     o.clock,
		Observers: []ports.RunObserver{recorder},
		Logger:    baseLogger.With("component", "ingest"),
		Options: usecase.IngestOptions{
			MaxAttempts:     cfg.Ingest.MaxAttempts,
			MinWords:        cfg.Ingest.MinWords,
			AllowUndated:    cfg.Ingest.AllowUndated,
			MaxBackfillDays: cfg.Ingest.MaxBackfillDays,
			FeedOrder:       usecase.FeedOrder(cfg.Ingest.FeedOrder),
		},
	})
	feeds := usecase.NewFeedService(store, o.clock, baseLogger.With("component", "feeds"))

	var notifier ports.Notifier
	var tgOpts []telegram.Option
	if o.telegramURL != "" {
		tgOpts = append(tgOpts, telegram.WithBaseURL(o.telegramURL))
	}
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID, tgOpts...); tg.Enabled() {
		notifier = tg
	}

	var (
		driver ports.Scheduler
		cron   *scheduler.CronScheduler
	)
	if cfg.Scheduler.Enabled {
		cron = scheduler.NewCronScheduler(cronSpec, logger.New(baseLogger, "cron"))
		driver = cron
	}
	sched := usecase.NewScheduler(driver, ingestor, notifier, baseLogger.With("component", "scheduler"))

	router := httpapi.NewRouter(httpapi.Deps{
		Articles:     store,
		Feeds:        feeds,
		Runner:       ingestor,
		Health:       store,
		Metrics:      recorder.Handler(),
		AdminToken:   cfg.HTTP.AdminToken,
		PreviewWords: cfg.HTTP.PreviewWords,
		Logger:       baseLogger.With("component", "http"),
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		store:     store,
		ingestor:  ingestor,
		feeds:     feeds,
		metrics:   recorder,
		scheduler: sched,
		cron:      cron,
		router:    router,
	}, nil
}

// CronSpec resolves the effective cron expression of the daily tick.
func CronSpec(cfg config.SchedulerConfig) (string, error) {
	if cfg.CronExpression != "" {
		if err := scheduler.Validate(cfg.CronExpression); err != nil {
			return "", err
		}
		return cfg.CronExpression, nil
	}
	return scheduler.SpecFromFireAt(cfg.FireAt)
}

// Ingestor exposes the slot orchestrator for one-shot commands.
func (a *Application) Ingestor() *usecase.Ingestor {
	return a.ingestor
}

// Feeds exposes the feed registry service.
func (a *Application) Feeds() *usecase.FeedService {
	return a.feeds
}

// NextRun is the next scheduled daily fill, or zero when the scheduler is
// disabled or not started.
func (a *Application) NextRun() time.Time {
	if a.cron == nil {
		return time.Time{}
	}
	return a.cron.Next()
}

// Handler is the HTTP API.
func (a *Application) Handler() http.Handler {
	return a.router
}

// Serve runs the HTTP server and the daily scheduler until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      a.router,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		ErrorLog:     logger.New(a.logger, "http"),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		startErr := a.scheduler.Start(gctx)
		if startErr == nil {
			if next := a.NextRun(); !next.IsZero() {
				a.logger.Info("daily fill scheduled", "next", next)
			}
			<-gctx.Done()
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down")
		return errors.Join(startErr, a.scheduler.Stop(shutdownCtx), srv.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

// Close releases the database pool.
func (a *Application) Close() error {
	return a.store.Close()
}
