package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"LandingArticles/internal/domain"
	"LandingArticles/internal/ports"
)

const untitled = "Untitled"

// buildArticle turns an accepted extraction into the article committed for slot.
func buildArticle(slot domain.SlotDate, item domain.CandidateItem, normalizedURL string, ext ports.Extraction, now time.Time) domain.Article {
	title := firstNonBlank(item.Title, ext.Title, untitled)
	body := "# " + title + "\n\n" + stripLeadingH1(ext.Markdown)
	body = strings.TrimSpace(body) + "\n\n---\n\nSource: " + item.SourceURL + "\n"

	return domain.Article{
		Slot:            slot,
		FeedID:          item.FeedID,
		ItemID:          item.ID,
		Title:           title,
		Body:            body,
		ImageURL:        firstNonBlank(item.ImageURL, ext.ImageURL),
		SourceURL:       item.SourceURL,
		NormalizedURL:   normalizedURL,
		PublishedAt:     item.PublishedAt,
		IngestedAt:      now.UTC(),
		WordCount:       WordCount(body),
		Checksum:        checksum(body),
		ExtractionStage: ext.Stage,
	}
}

// stripLeadingH1 drops a first-line ATX heading of level one.
func stripLeadingH1(markdown string) string {
	markdown = strings.TrimSpace(markdown)
	if !strings.HasPrefix(markdown, "# ") {
		return markdown
	}
	if i := strings.IndexByte(markdown, '\n'); i >= 0 {
		return strings.TrimSpace(markdown[i+1:])
	}
	return ""
}

// WordCount counts runs of letters, digits and underscores.
func WordCount(text string) int {
	return len(strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}))
}

func checksum(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
