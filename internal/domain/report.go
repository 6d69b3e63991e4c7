package domain

import "time"

// ItemStatus is the per-run state reported for an admitted item.
// Unrecorded items were admitted but never reached a recorded terminal state.
type ItemStatus string

const (
	StatusPublished  ItemStatus = ItemStatus(OutcomePublished)
	StatusSkipped    ItemStatus = ItemStatus(OutcomeSkipped)
	StatusFailed     ItemStatus = ItemStatus(OutcomeFailed)
	StatusUnrecorded ItemStatus = "unrecorded"
)

// ItemOutcome is the accounting line for one admitted item.
type ItemOutcome struct {
	ItemID        string
	Title         string
	Query         string
	Status        ItemStatus
	RemoteVideoID string
	Reason        string
}

// RunReport summarizes one mode run.
type RunReport struct {
	RunID      string
	Mode       Mode
	StartedAt  time.Time
	FinishedAt time.Time
	Queries    int
	Fetched    int
	Duplicates int
	Items      []ItemOutcome
	Fatal      error
}

// Aborted reports whether a run-fatal error halted processing early.
func (r RunReport) Aborted() bool {
	return r.Fatal != nil
}

// Count returns how many items ended in status.
func (r RunReport) Count(status ItemStatus) int {
	n := 0
	for _, item := range r.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}

// Published lists the items published this run.
func (r RunReport) Published() []ItemOutcome {
	return r.filter(StatusPublished)
}

// Skipped lists the items skipped after a render or compose failure.
func (r RunReport) Skipped() []ItemOutcome {
	return r.filter(StatusSkipped)
}

// Failed lists the items whose publish failed.
func (r RunReport) Failed() []ItemOutcome {
	return r.filter(StatusFailed)
}

// Unrecorded lists admitted items left without a history record.
func (r RunReport) Unrecorded() []ItemOutcome {
	return r.filter(StatusUnrecorded)
}

func (r RunReport) filter(status ItemStatus) []ItemOutcome {
	var out []ItemOutcome
	for _, item := range r.Items {
		if item.Status == status {
			out = append(out, item)
		}
	}
	return out
}
