package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrExtractionFailure = errors.New("extraction failed")
	ErrNoCandidateFound  = errors.New("no candidate found")
	ErrAlreadyFilled     = errors.New("slot already filled")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrDuplicateSource   = errors.New("source already ingested")
	ErrNotFound          = errors.New("not found")
	ErrFeedExists        = errors.New("feed already registered")
	ErrInvalidFeed       = errors.New("invalid feed")
	ErrInvalidDays       = errors.New("invalid number of days")
	ErrBackfillRunning   = errors.New("backfill already running")
)

// SourceError describes a feed that could not be fetched or parsed.
type SourceError struct {
	FeedURL string
	Err     error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("feed %s: %v", e.FeedURL, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}

// StageFailure records why a single extraction stage gave up.
type StageFailure struct {
	Stage  string
	Reason string
}

// ExtractionError is returned when every extraction stage failed.
type ExtractionError struct {
	SourceURL string
	Failures  []StageFailure
}

func (e *ExtractionError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Stage+": "+f.Reason)
	}
	return fmt.Sprintf("extract %s: %s", e.SourceURL, strings.Join(parts, "; "))
}

func (e *ExtractionError) Unwrap() error {
	return ErrExtractionFailure
}

// StoreError wraps a persistence failure.
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
