package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubHistory struct {
	records   []domain.HistoryRecord
	err       error
	lastLimit int
}

func (s *stubHistory) IsProcessed(context.Context, string) (bool, error) { return false, nil }

func (s *stubHistory) Commit(context.Context, domain.HistoryRecord) error { return nil }

func (s *stubHistory) Recent(_ context.Context, limit int) ([]domain.HistoryRecord, error) {
	s.lastLimit = limit
	return s.records, s.err
}

func (s *stubHistory) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

type stubReports []domain.RunReport

func (s stubReports) LastReports() []domain.RunReport { return s }

func do(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v (%s)", path, err, rec.Body.String())
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := NewServer(&stubHistory{}, nil, logging.Discard())
	rec, body := do(t, s.Handler(), "/health")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", rec.Code, body)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	t.Parallel()

	history := &stubHistory{records: []domain.HistoryRecord{
		{ItemID: "a", RunID: "r1", Outcome: domain.OutcomePublished, RemoteVideoID: "vid", Title: "A"},
		{ItemID: "b", RunID: "r1", Outcome: domain.OutcomeSkipped, Title: "B", Reason: "render failure"},
	}}
	s := NewServer(history, nil, logging.Discard())

	rec, body := do(t, s.Handler(), "/api/v1/history?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if history.lastLimit != 5 {
		t.Fatalf("limit = %d, want 5", history.lastLimit)
	}
	data := body["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("records = %d", len(data))
	}
	first := data[0].(map[string]any)
	if first["item_id"] != "a" || first["outcome"] != "published" || first["remote_video_id"] != "vid" {
		t.Fatalf("first record = %v", first)
	}

	do(t, s.Handler(), "/api/v1/history?limit=100000")
	if history.lastLimit != maxHistoryLimit {
		t.Fatalf("limit not capped: %d", history.lastLimit)
	}
	do(t, s.Handler(), "/api/v1/history?limit=nope")
	if history.lastLimit != defaultHistoryLimit {
		t.Fatalf("bad limit not defaulted: %d", history.lastLimit)
	}
}

func TestHistoryEndpointError(t *testing.T) {
	t.Parallel()

	s := NewServer(&stubHistory{err: errors.New("db gone")}, nil, logging.Discard())
	rec, body := do(t, s.Handler(), "/api/v1/history")
	if rec.Code != http.StatusInternalServerError || body["code"] != "internal_error" {
		t.Fatalf("got %d %v", rec.Code, body)
	}
}

func TestLastRunsEndpoint(t *testing.T) {
	t.Parallel()

	s := NewServer(&stubHistory{}, stubReports(nil), logging.Discard())
	rec, _ := do(t, s.Handler(), "/api/v1/runs/last")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	reports := stubReports{{
		RunID: "r1",
		Mode:  domain.KeywordsMode("in"),
		Items: []domain.ItemOutcome{
			{ItemID: "a", Status: domain.StatusPublished, RemoteVideoID: "v"},
			{ItemID: "b", Status: domain.StatusUnrecorded},
		},
		Fatal: domain.ErrAuthExpired,
	}}
	s = NewServer(&stubHistory{}, reports, logging.Discard())
	rec, body := do(t, s.Handler(), "/api/v1/runs/last")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	run := body["data"].([]any)[0].(map[string]any)
	if run["mode"] != "keywords" || run["region"] != "in" || run["aborted"] != true {
		t.Fatalf("run = %v", run)
	}
	if run["published"].(float64) != 1 || run["unrecorded"].(float64) != 1 {
		t.Fatalf("counts = %v", run)
	}
	if run["fatal"] != "auth expired" {
		t.Fatalf("fatal = %v", run["fatal"])
	}
}

func TestListenAndServeStopsWithContext(t *testing.T) {
	t.Parallel()

	s := NewServer(&stubHistory{}, nil, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
