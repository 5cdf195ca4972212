// Package feed adapts RSS, Atom and JSON feeds into candidate items.
package feed

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"LandingArticles/internal/domain"
	"LandingArticles/internal/infrastructure/fetcher"
	"LandingArticles/internal/ports"
)

const (
	DefaultMaxItems     = 50
	defaultMaxFeedBytes = 10 << 20
)

// Options configures Source.
type Options struct {
	UserAgent string
	MaxItems  int
	MaxBytes  int64
	Limiter   *fetcher.HostLimiter
}

// Source fetches a feed on every call; nothing is cached between calls.
type Source struct {
	client    *http.Client
	userAgent string
	maxItems  int
	maxBytes  int64
	limiter   *fetcher.HostLimiter
}

var _ ports.CandidateSource = (*Source)(nil)

// NewSource wires an HTTP client; a nil client gets a 10s timeout and one redirect.
func NewSource(client *http.Client, opts Options) *Source {
	if client == nil {
		client = fetcher.NewHTTPClient(fetcher.ClientOptions{Timeout: 10 * time.Second, MaxRedirects: 1})
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxFeedBytes
	}
	return &Source{
		client:    client,
		userAgent: opts.UserAgent,
		maxItems:  opts.MaxItems,
		maxBytes:  opts.MaxBytes,
		limiter:   opts.Limiter,
	}
}

// FetchCandidates downloads and parses the feed. Items come newest first, undated
// items last, capped at the configured maximum.
func (s *Source) FetchCandidates(ctx context.Context, f domain.Feed) (iter.Seq[domain.CandidateItem], error) {
	if err := s.limiter.Wait(ctx, f.URL); err != nil {
		return nil, &domain.SourceError{FeedURL: f.URL, Err: err}
	}

	resp, err := fetcher.Get(ctx, s.client, f.URL, s.userAgent, s.maxBytes)
	if err != nil {
		return nil, &domain.SourceError{FeedURL: f.URL, Err: err}
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &domain.SourceError{FeedURL: f.URL, Err: fmt.Errorf("parse feed: %w", err)}
	}

	items := make([]*gofeed.Item, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item != nil && itemLink(item, resp.URL) != "" {
			items = append(items, item)
		}
	}
	slices.SortStableFunc(items, newestFirst)
	if len(items) > s.maxItems {
		items = items[:s.maxItems]
	}

	base := resp.URL
	return func(yield func(domain.CandidateItem) bool) {
		for _, item := range items {
			if !yield(toCandidate(f.ID, item, base)) {
				return
			}
		}
	}, nil
}

func newestFirst(a, b *gofeed.Item) int {
	ta, tb := itemTime(a), itemTime(b)
	switch {
	case ta.IsZero() && tb.IsZero():
		return 0
	case ta.IsZero():
		return 1
	case tb.IsZero():
		return -1
	}
	return cmp.Compare(tb.UnixNano(), ta.UnixNano())
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return time.Time{}
}

func toCandidate(feedID int64, item *gofeed.Item, base string) domain.CandidateItem {
	link := itemLink(item, base)

	raw := strings.TrimSpace(item.Content)
	full := raw != ""
	if !full {
		raw = strings.TrimSpace(item.Description)
	}

	id := strings.TrimSpace(item.GUID)
	if id == "" {
		id = link
	}

	return domain.CandidateItem{
		FeedID:         feedID,
		ID:             id,
		Title:          strings.TrimSpace(item.Title),
		PublishedAt:    itemTime(item),
		RawContent:     raw,
		HasFullContent: full,
		SourceURL:      link,
		ImageURL:       resolve(base, itemImage(item, raw)),
	}
}

// itemLink returns the absolute article URL or "" when the item has none.
func itemLink(item *gofeed.Item, base string) string {
	candidates := append([]string{item.Link}, item.Links...)
	for _, c := range candidates {
		link := resolve(base, strings.TrimSpace(c))
		u, err := url.Parse(link)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		return link
	}
	return ""
}

func itemImage(item *gofeed.Item, raw string) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, c := range media["content"] {
			if isImageMedia(c.Attrs) {
				return c.Attrs["url"]
			}
		}
		for _, g := range media["group"] {
			for _, c := range g.Children["content"] {
				if isImageMedia(c.Attrs) {
					return c.Attrs["url"]
				}
			}
		}
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, th := range media["thumbnail"] {
			if u := th.Attrs["url"]; u != "" {
				return u
			}
		}
	}
	return firstImage(raw)
}

func isImageMedia(attrs map[string]string) bool {
	if attrs["url"] == "" {
		return false
	}
	medium, typ := attrs["medium"], attrs["type"]
	return medium == "image" || strings.HasPrefix(typ, "image/") || (medium == "" && typ == "")
}

func firstImage(html string) string {
	if !strings.Contains(html, "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

func resolve(base, ref string) string {
	if ref == "" {
		return ""
	}
	target, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if target.IsAbs() {
		return target.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(target).String()
}
