package usecase

import (
	"fmt"
	"strings"
	"testing"

	"NewsShorts/internal/domain"
)

func TestFormatReport(t *testing.T) {
	t.Parallel()

	report := domain.RunReport{
		RunID:      "0123456789abcdef",
		Mode:       domain.CategoriesMode("in"),
		Queries:    9,
		Fetched:    12,
		Duplicates: 4,
		Items: []domain.ItemOutcome{
			{ItemID: "1", Title: "Rain in Mumbai", Status: domain.StatusPublished, RemoteVideoID: "abc"},
			{ItemID: "2", Title: "Budget talks", Status: domain.StatusSkipped, Reason: "render failure: crashed"},
			{ItemID: "3", Title: "Cricket", Status: domain.StatusFailed, Reason: "auth expired"},
			{ItemID: "4", Title: "Markets", Status: domain.StatusUnrecorded, Reason: "run aborted before publish"},
		},
		Fatal: fmt.Errorf("%w: token revoked", domain.ErrAuthExpired),
	}

	got := FormatReport(report)
	for _, want := range []string{
		"NewsShorts run 01234567: categories(in)",
		"published 1, skipped 1, failed 1, unrecorded 1 (queries 9, fetched 12, duplicates 4)",
		"ABORTED (AuthExpired)",
		"Published:\n- Rain in Mumbai https://youtube.com/shorts/abc",
		"Skipped:\n- Budget talks: render failure: crashed",
		"Failed:\n- Cricket: auth expired",
		"Unrecorded:\n- Markets: run aborted before publish",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("report missing %q:\n%s", want, got)
		}
	}
}

func TestFormatReportQuietRun(t *testing.T) {
	t.Parallel()

	got := FormatReport(domain.RunReport{RunID: "r1", Mode: domain.KeywordsMode("us")})
	if strings.Contains(got, "ABORTED") || strings.Contains(got, ":\n-") {
		t.Fatalf("unexpected sections:\n%s", got)
	}
	if !strings.HasPrefix(got, "NewsShorts run r1: keywords(us)") {
		t.Fatalf("header = %q", got)
	}
}
