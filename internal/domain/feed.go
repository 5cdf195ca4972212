package domain

import "time"

// Feed is a registered content source.
type Feed struct {
	ID                int64
	URL               string
	Name              string
	Active            bool
	CreatedAt         time.Time
	LastSeen          Marker
	LastContributedAt time.Time
}

// Marker is the per-feed cursor of the last ingested item.
type Marker struct {
	ItemID      string
	PublishedAt time.Time
}

// IsZero reports whether nothing was ever ingested from the feed.
func (m Marker) IsZero() bool {
	return m.ItemID == "" && m.PublishedAt.IsZero()
}

// Admits reports whether the candidate lies strictly after the marker.
// Undated candidates are only compared by identifier.
func (m Marker) Admits(item CandidateItem) bool {
	if m.IsZero() {
		return true
	}
	if item.ID != "" && item.ID == m.ItemID {
		return false
	}
	if !item.Dated() || m.PublishedAt.IsZero() {
		return true
	}
	return item.PublishedAt.After(m.PublishedAt)
}

// Advance returns the marker after recording next. The publication time never
// moves backwards: an older next is ignored and an undated next only replaces the
// item identifier.
func (m Marker) Advance(next Marker) Marker {
	if next.PublishedAt.IsZero() {
		return Marker{ItemID: next.ItemID, PublishedAt: m.PublishedAt}
	}
	if !m.PublishedAt.IsZero() && next.PublishedAt.Before(m.PublishedAt) {
		return m
	}
	return next
}

// FeedUpdate carries optional admin mutations; nil fields are left untouched.
type FeedUpdate struct {
	Name   *string
	Active *bool
}
