package domain

import "time"

// Article is a committed ingestion result occupying exactly one slot.
type Article struct {
	ID              int64
	Slot            SlotDate
	FeedID          int64
	ItemID          string
	Title           string
	Body            string
	ImageURL        string
	SourceURL       string
	NormalizedURL   string
	PublishedAt     time.Time
	IngestedAt      time.Time
	WordCount       int
	Checksum        string
	ExtractionStage string
}

// CandidateItem is a feed entry offered for slot filling. It is never persisted.
type CandidateItem struct {
	FeedID         int64
	ID             string
	Title          string
	PublishedAt    time.Time
	RawContent     string
	HasFullContent bool
	SourceURL      string
	ImageURL       string
}

// Dated reports whether the feed carried a parsable publication time.
func (c CandidateItem) Dated() bool {
	return !c.PublishedAt.IsZero()
}
