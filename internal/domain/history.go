package domain

import "time"

// Outcome is the terminal state recorded for an item.
type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// HistoryRecord is appended once per item per run and never mutated.
type HistoryRecord struct {
	ItemID        string
	RunID         string
	ProcessedAt   time.Time
	Outcome       Outcome
	RemoteVideoID string
	Title         string
	SourceURL     string
	Reason        string
}
