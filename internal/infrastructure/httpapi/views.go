package httpapi

import (
	"strings"
	"time"
	"unicode"

	"LandingArticles/internal/domain"
)

type articleSummary struct {
	ID          int64      `json:"id"`
	SlotDate    string     `json:"slot_date"`
	Title       string     `json:"title"`
	ImageURL    string     `json:"image_url,omitempty"`
	SourceURL   string     `json:"source_url"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	WordCount   int        `json:"word_count"`
	Preview     string     `json:"preview"`
}

type articleView struct {
	ID              int64      `json:"id"`
	SlotDate        string     `json:"slot_date"`
	FeedID          int64      `json:"feed_id"`
	Title           string     `json:"title"`
	Body            string     `json:"body"`
	Truncated       bool       `json:"truncated"`
	ImageURL        string     `json:"image_url,omitempty"`
	SourceURL       string     `json:"source_url"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	IngestedAt      time.Time  `json:"ingested_at"`
	WordCount       int        `json:"word_count"`
	Checksum        string     `json:"checksum"`
	ExtractionStage string     `json:"extraction_stage"`
}

type feedView struct {
	ID                  int64      `json:"id"`
	URL                 string     `json:"url"`
	Name                string     `json:"name"`
	Active              bool       `json:"active"`
	CreatedAt           time.Time  `json:"created_at"`
	LastSeenItemID      string     `json:"last_seen_item_id,omitempty"`
	LastSeenPublishedAt *time.Time `json:"last_seen_published_at,omitempty"`
	LastContributedAt   *time.Time `json:"last_contributed_at,omitempty"`
}

func summarize(a domain.Article, previewWords int) articleSummary {
	preview, _ := truncateWords(a.Body, previewWords)
	return articleSummary{
		ID:          a.ID,
		SlotDate:    a.Slot.String(),
		Title:       a.Title,
		ImageURL:    a.ImageURL,
		SourceURL:   a.SourceURL,
		PublishedAt: optionalTime(a.PublishedAt),
		WordCount:   a.WordCount,
		Preview:     preview,
	}
}

func viewArticle(a domain.Article, maxWords int) articleView {
	body, truncated := a.Body, false
	if maxWords > 0 {
		body, truncated = truncateWords(a.Body, maxWords)
	}
	return articleView{
		ID:              a.ID,
		SlotDate:        a.Slot.String(),
		FeedID:          a.FeedID,
		Title:           a.Title,
		Body:            body,
		Truncated:       truncated,
		ImageURL:        a.ImageURL,
		SourceURL:       a.SourceURL,
		PublishedAt:     optionalTime(a.PublishedAt),
		IngestedAt:      a.IngestedAt,
		WordCount:       a.WordCount,
		Checksum:        a.Checksum,
		ExtractionStage: a.ExtractionStage,
	}
}

func viewFeed(f domain.Feed) feedView {
	return feedView{
		ID:                  f.ID,
		URL:                 f.URL,
		Name:                f.Name,
		Active:              f.Active,
		CreatedAt:           f.CreatedAt,
		LastSeenItemID:      f.LastSeen.ItemID,
		LastSeenPublishedAt: optionalTime(f.LastSeen.PublishedAt),
		LastContributedAt:   optionalTime(f.LastContributedAt),
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// truncateWords keeps the first n whitespace-separated words of text with their
// original spacing and reports whether anything was cut.
func truncateWords(text string, n int) (string, bool) {
	words := 0
	inWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			inWord = true
			words++
			if words > n {
				return strings.TrimRightFunc(text[:i], unicode.IsSpace), true
			}
		}
	}
	return text, false
}
