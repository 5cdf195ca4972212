package domain

import "time"

// Outcome is the terminal state of one slot run.
type Outcome string

const (
	OutcomeCommitted        Outcome = "committed"
	OutcomeAlreadyFilled    Outcome = "already_filled"
	OutcomeNoCandidate      Outcome = "no_candidate"
	OutcomeStoreUnavailable Outcome = "store_unavailable"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeSkipped          Outcome = "skipped"
)

// Failed reports whether the outcome aborts a backfill.
func (o Outcome) Failed() bool {
	return o == OutcomeStoreUnavailable || o == OutcomeCancelled
}

// IssueKind classifies non-fatal problems met during a run.
type IssueKind string

const (
	IssueSourceUnavailable IssueKind = "source_unavailable"
	IssueExtraction        IssueKind = "extraction_failure"
	IssueDuplicate         IssueKind = "duplicate"
	IssueMarker            IssueKind = "marker_update"
)

// Issue is a recovered problem surfaced in the run report.
type Issue struct {
	Kind   IssueKind `json:"kind"`
	FeedID int64     `json:"feed_id,omitempty"`
	ItemID string    `json:"item_id,omitempty"`
	Reason string    `json:"reason"`
}

// RunReport is the structured result of one slot orchestration.
type RunReport struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	Slot       SlotDate  `json:"slot_date"`
	Outcome    Outcome   `json:"outcome"`
	ArticleID  int64     `json:"article_id,omitempty"`
	FeedID     int64     `json:"feed_id,omitempty"`
	ItemID     string    `json:"item_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Attempts   int       `json:"attempts"`
	Issues     []Issue   `json:"issues,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// AddIssue appends a recovered problem to the report.
func (r *RunReport) AddIssue(kind IssueKind, feedID int64, itemID string, err error) {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	r.Issues = append(r.Issues, Issue{Kind: kind, FeedID: feedID, ItemID: itemID, Reason: reason})
}

// Duration is the wall time spent on the run.
func (r RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
