// Package extraction runs an ordered chain of extraction stages over one source item.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"LandingArticles/internal/domain"
	"LandingArticles/internal/ports"
)

// ErrPageFetcherMissing is returned by Document.Page when no fetcher is wired.
var ErrPageFetcherMissing = errors.New("page fetcher is not configured")

// Page is a fetched source page together with the metadata needed for fallbacks.
type Page struct {
	URL     string
	HTML    string
	Title   string
	OGTitle string
	OGImage string
}

// PageFetcher downloads the live page behind a candidate item.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Page, error)
}

// Document is the material shared by the stages of a single extraction.
// The page is fetched at most once, and only when a stage asks for it.
type Document struct {
	Raw       string
	SourceURL string

	fetcher PageFetcher
	once    sync.Once
	page    *Page
	pageErr error
	fetched bool
}

// NewDocument builds a document; fetcher may be nil when only raw content is available.
func NewDocument(raw, sourceURL string, fetcher PageFetcher) *Document {
	return &Document{Raw: raw, SourceURL: sourceURL, fetcher: fetcher}
}

// Page returns the fetched page, performing the network fetch on first use.
func (d *Document) Page(ctx context.Context) (*Page, error) {
	d.once.Do(func() {
		if d.fetcher == nil {
			d.pageErr = ErrPageFetcherMissing
			return
		}
		d.fetched = true
		d.page, d.pageErr = d.fetcher.Fetch(ctx, d.SourceURL)
	})
	return d.page, d.pageErr
}

// PageFetched reports whether a network fetch was attempted.
func (d *Document) PageFetched() bool {
	return d.fetched
}

// Stage is a single extraction strategy. It returns Markdown or an error explaining
// why the output was not acceptable.
type Stage interface {
	Name() string
	Extract(ctx context.Context, doc *Document) (string, error)
}

// Engine tries its stages in order and stops at the first success.
type Engine struct {
	stages  []Stage
	fetcher PageFetcher
	logger  *slog.Logger
}

var _ ports.Extractor = (*Engine)(nil)

// NewEngine wires the page fetcher and the ordered stage list.
func NewEngine(fetcher PageFetcher, logger *slog.Logger, stages ...Stage) *Engine {
	return &Engine{stages: stages, fetcher: fetcher, logger: logger}
}

// Stages lists the stage names in evaluation order.
func (e *Engine) Stages() []string {
	names := make([]string, 0, len(e.stages))
	for _, s := range e.stages {
		names = append(names, s.Name())
	}
	return names
}

// Extract runs the chain. On total failure the error is a *domain.ExtractionError.
func (e *Engine) Extract(ctx context.Context, in ports.ExtractionInput) (ports.Extraction, error) {
	doc := NewDocument(in.RawContent, in.SourceURL, e.fetcher)
	failure := &domain.ExtractionError{SourceURL: in.SourceURL}

	for _, stage := range e.stages {
		if err := ctx.Err(); err != nil {
			failure.Failures = append(failure.Failures, domain.StageFailure{Stage: stage.Name(), Reason: err.Error()})
			return ports.Extraction{}, failure
		}

		markdown, err := stage.Extract(ctx, doc)
		if err == nil && strings.TrimSpace(markdown) == "" {
			err = errors.New("empty output")
		}
		if err != nil {
			e.debug("stage rejected", "stage", stage.Name(), "url", in.SourceURL, "reason", err)
			failure.Failures = append(failure.Failures, domain.StageFailure{Stage: stage.Name(), Reason: err.Error()})
			continue
		}

		result := ports.Extraction{Markdown: strings.TrimSpace(markdown), Stage: stage.Name()}
		if doc.PageFetched() && doc.page != nil {
			result.Title = firstNonEmpty(doc.page.OGTitle, doc.page.Title)
			result.ImageURL = doc.page.OGImage
		}
		e.debug("stage accepted", "stage", stage.Name(), "url", in.SourceURL, "chars", len(result.Markdown))
		return result, nil
	}

	if len(failure.Failures) == 0 {
		failure.Failures = append(failure.Failures, domain.StageFailure{Stage: "engine", Reason: "no stages configured"})
	}
	return ports.Extraction{}, failure
}

// MinLength rejects output shorter than min characters.
func MinLength(markdown string, min int) error {
	if n := len([]rune(strings.TrimSpace(markdown))); n < min {
		return fmt.Errorf("output too short: %d < %d chars", n, min)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (e *Engine) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
