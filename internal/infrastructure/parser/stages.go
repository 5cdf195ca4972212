package parser

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"LandingArticles/internal/extraction"
)

// Default acceptance thresholds, in characters.
const (
	DefaultMinRawContentChars = 500
	DefaultMinExtractedChars  = 250
)

// DirectStage converts substantive raw feed content without touching the network.
type DirectStage struct {
	converter *MarkdownConverter
	minChars  int
}

// NewDirectStage accepts raw content whose visible text has at least minChars characters.
func NewDirectStage(converter *MarkdownConverter, minChars int) *DirectStage {
	return &DirectStage{converter: converter, minChars: minChars}
}

// Name identifies the stage in reports.
func (s *DirectStage) Name() string { return "direct" }

// Extract converts doc.Raw when it is long enough to be the full article.
func (s *DirectStage) Extract(_ context.Context, doc *extraction.Document) (string, error) {
	if strings.TrimSpace(doc.Raw) == "" {
		return "", fmt.Errorf("no raw content")
	}
	if n := len([]rune(s.converter.VisibleText(doc.Raw))); n < s.minChars {
		return "", fmt.Errorf("raw content not substantive: %d < %d chars", n, s.minChars)
	}
	return s.converter.Convert(doc.Raw, doc.SourceURL)
}

// DensityStage picks the densest text block of the fetched page.
type DensityStage struct {
	converter *MarkdownConverter
	minChars  int
}

// NewDensityStage builds the primary boilerplate-removal stage.
func NewDensityStage(converter *MarkdownConverter, minChars int) *DensityStage {
	return &DensityStage{converter: converter, minChars: minChars}
}

// Name identifies the stage in reports.
func (s *DensityStage) Name() string { return "density" }

// Extract fetches the page (once per document) and converts its main block.
func (s *DensityStage) Extract(ctx context.Context, doc *extraction.Document) (string, error) {
	page, err := doc.Page(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}

	block, err := DenseBlockHTML(page.HTML)
	if err != nil {
		return "", err
	}

	markdown, err := s.converter.Convert(block, page.URL)
	if err != nil {
		return "", err
	}
	if err := extraction.MinLength(markdown, s.minChars); err != nil {
		return "", err
	}
	return markdown, nil
}

// ReadabilityStage is the fallback using readability-style candidate scoring.
type ReadabilityStage struct {
	converter *MarkdownConverter
	minChars  int
}

// NewReadabilityStage builds the secondary stage.
func NewReadabilityStage(converter *MarkdownConverter, minChars int) *ReadabilityStage {
	return &ReadabilityStage{converter: converter, minChars: minChars}
}

// Name identifies the stage in reports.
func (s *ReadabilityStage) Name() string { return "readability" }

// Extract runs go-readability over the same fetched page.
func (s *ReadabilityStage) Extract(ctx context.Context, doc *extraction.Document) (string, error) {
	page, err := doc.Page(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}

	pageURL, err := url.Parse(firstNonEmpty(page.URL, doc.SourceURL))
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(page.HTML), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	markdown, err := s.converter.Convert(article.Content, pageURL.String())
	if err != nil {
		return "", err
	}
	if err := extraction.MinLength(markdown, s.minChars); err != nil {
		return "", err
	}
	return markdown, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
