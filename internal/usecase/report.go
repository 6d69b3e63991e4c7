package usecase

import (
	"fmt"
	"strings"

	"NewsShorts/internal/domain"
)

// FormatReport renders a plain-text run summary for chat notifications and the CLI.
func FormatReport(r domain.RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "NewsShorts run %s: %s\n", shortID(r.RunID), r.Mode)
	fmt.Fprintf(&b, "published %d, skipped %d, failed %d, unrecorded %d (queries %d, fetched %d, duplicates %d)\n",
		r.Count(domain.StatusPublished),
		r.Count(domain.StatusSkipped),
		r.Count(domain.StatusFailed),
		r.Count(domain.StatusUnrecorded),
		r.Queries, r.Fetched, r.Duplicates,
	)
	if r.Aborted() {
		kind := domain.ErrorKind(r.Fatal)
		if kind == "" {
			kind = "error"
		}
		fmt.Fprintf(&b, "ABORTED (%s): %v\n", kind, r.Fatal)
	}

	section(&b, "Published", r.Published(), func(o domain.ItemOutcome) string {
		return fmt.Sprintf("%s https://youtube.com/shorts/%s", o.Title, o.RemoteVideoID)
	})
	section(&b, "Skipped", r.Skipped(), withReason)
	section(&b, "Failed", r.Failed(), withReason)
	section(&b, "Unrecorded", r.Unrecorded(), withReason)

	return strings.TrimRight(b.String(), "\n")
}

func section(b *strings.Builder, name string, items []domain.ItemOutcome, line func(domain.ItemOutcome) string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", name)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", line(item))
	}
}

func withReason(o domain.ItemOutcome) string {
	if o.Reason == "" {
		return o.Title
	}
	return o.Title + ": " + o.Reason
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
