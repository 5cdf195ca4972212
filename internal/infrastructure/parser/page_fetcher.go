package parser

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"LandingArticles/internal/extraction"
	"LandingArticles/internal/infrastructure/fetcher"
)

// ErrDisallowed is returned when robots.txt forbids fetching the page.
var ErrDisallowed = errors.New("disallowed by robots.txt")

const defaultMaxPageBytes = 5 << 20

// PageFetcher downloads article pages for the page-based extraction stages.
type PageFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	limiter   *fetcher.HostLimiter
	robots    *fetcher.RobotsChecker
}

var _ extraction.PageFetcher = (*PageFetcher)(nil)

// PageFetcherOptions configures optional politeness features.
type PageFetcherOptions struct {
	UserAgent string
	MaxBytes  int64
	Limiter   *fetcher.HostLimiter
	Robots    *fetcher.RobotsChecker
}

// NewPageFetcher wires an HTTP client; the client owns timeout and redirect policy.
func NewPageFetcher(client *http.Client, opts PageFetcherOptions) *PageFetcher {
	if client == nil {
		client = fetcher.NewHTTPClient(fetcher.ClientOptions{MaxRedirects: 1})
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxPageBytes
	}
	return &PageFetcher{
		client:    client,
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
		limiter:   opts.Limiter,
		robots:    opts.Robots,
	}
}

// Fetch downloads pageURL and captures title and Open Graph metadata.
func (f *PageFetcher) Fetch(ctx context.Context, pageURL string) (*extraction.Page, error) {
	if strings.TrimSpace(pageURL) == "" {
		return nil, fmt.Errorf("empty page url")
	}

	if f.robots != nil {
		allowed, err := f.robots.Allowed(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", pageURL, ErrDisallowed)
		}
	}

	if err := f.limiter.Wait(ctx, pageURL); err != nil {
		return nil, err
	}

	resp, err := fetcher.Get(ctx, f.client, pageURL, f.userAgent, f.maxBytes)
	if err != nil {
		return nil, err
	}
	if !isHTML(resp.ContentType) {
		return nil, fmt.Errorf("%s: unsupported content type %q", pageURL, resp.ContentType)
	}

	page := &extraction.Page{URL: resp.URL, HTML: string(resp.Body)}
	readMeta(page)
	return page, nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func readMeta(page *extraction.Page) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return
	}

	page.Title = strings.TrimSpace(doc.Find("head title").First().Text())
	page.OGTitle = metaContent(doc, "meta[property='og:title']")
	image := metaContent(doc, "meta[property='og:image']")
	if image == "" {
		image = metaContent(doc, "meta[name='twitter:image']")
	}
	page.OGImage = resolve(page.URL, image)
}

func metaContent(doc *goquery.Document, selector string) string {
	value, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(value)
}

func resolve(baseURL, ref string) string {
	if ref == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	target, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(target).String()
}
