package status

import (
	"time"

	"NewsShorts/internal/domain"
)

type historyJSON struct {
	ItemID        string    `json:"item_id"`
	RunID         string    `json:"run_id"`
	ProcessedAt   time.Time `json:"processed_at"`
	Outcome       string    `json:"outcome"`
	RemoteVideoID string    `json:"remote_video_id,omitempty"`
	Title         string    `json:"title"`
	SourceURL     string    `json:"source_url"`
	Reason        string    `json:"reason,omitempty"`
}

type itemJSON struct {
	ItemID        string `json:"item_id"`
	Title         string `json:"title"`
	Query         string `json:"query"`
	Status        string `json:"status"`
	RemoteVideoID string `json:"remote_video_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type runJSON struct {
	RunID      string     `json:"run_id"`
	Mode       string     `json:"mode"`
	Region     string     `json:"region"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Queries    int        `json:"queries"`
	Fetched    int        `json:"fetched"`
	Duplicates int        `json:"duplicates"`
	Published  int        `json:"published"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Unrecorded int        `json:"unrecorded"`
	Aborted    bool       `json:"aborted"`
	Fatal      string     `json:"fatal,omitempty"`
	Items      []itemJSON `json:"items"`
}

func toHistoryJSON(r domain.HistoryRecord) historyJSON {
	return historyJSON{
		ItemID:        r.ItemID,
		RunID:         r.RunID,
		ProcessedAt:   r.ProcessedAt,
		Outcome:       string(r.Outcome),
		RemoteVideoID: r.RemoteVideoID,
		Title:         r.Title,
		SourceURL:     r.SourceURL,
		Reason:        r.Reason,
	}
}

func toRunJSON(r domain.RunReport) runJSON {
	out := runJSON{
		RunID:      r.RunID,
		Mode:       r.Mode.Kind.String(),
		Region:     r.Mode.Region,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Queries:    r.Queries,
		Fetched:    r.Fetched,
		Duplicates: r.Duplicates,
		Published:  r.Count(domain.StatusPublished),
		Skipped:    r.Count(domain.StatusSkipped),
		Failed:     r.Count(domain.StatusFailed),
		Unrecorded: r.Count(domain.StatusUnrecorded),
		Aborted:    r.Aborted(),
		Items:      make([]itemJSON, 0, len(r.Items)),
	}
	if r.Fatal != nil {
		out.Fatal = r.Fatal.Error()
	}
	for _, item := range r.Items {
		out.Items = append(out.Items, itemJSON{
			ItemID:        item.ItemID,
			Title:         item.Title,
			Query:         item.Query,
			Status:        string(item.Status),
			RemoteVideoID: item.RemoteVideoID,
			Reason:        item.Reason,
		})
	}
	return out
}
