package trends

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"NewsShorts/internal/domain"
)

const trendsPage = `
<html><body>
<div class="trend-card">
  <ol class="trend-card__list">
    <li><span class="trend-name"><a class="trend-link" href="#">#NeerajChopra</a></span></li>
    <li><span class="trend-name"><a class="trend-link" href="#">Monsoon</a></span></li>
    <li><span class="trend-name"><a class="trend-link" href="#">#Budget2026</a></span></li>
    <li><span class="trend-name"><a class="trend-link" href="#">#neerajchopra</a></span></li>
    <li><span class="trend-name"><a class="trend-link" href="#">#Don't</a></span></li>
    <li><span class="trend-name"><a class="trend-link" href="#">#ISRO</a></span></li>
    <li><span class="trend-name"><a class="trend-link" href="#">#BCCIUpdates</a></span></li>
  </ol>
</div>
<div class="trend-card">
  <ol class="trend-card__list">
    <li><span class="trend-name"><a class="trend-link" href="#">#YesterdayTag</a></span></li>
  </ol>
</div>
</body></html>`

func TestParseTrends(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trendsPage))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	got := ParseTrends(doc.Selection, 3)
	want := []string{"#NeerajChopra", "#Budget2026", "#ISRO"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", got, want)
	}

	all := ParseTrends(doc.Selection, 0)
	if len(all) != 4 || all[3] != "#BCCIUpdates" {
		t.Fatalf("expected only the first card without cap, got %v", all)
	}
}

func TestParseTrendsFallbackSelector(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div><a class="trend-link">#Loose</a></div>`))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	if got := ParseTrends(doc.Selection, 5); len(got) != 1 || got[0] != "#Loose" {
		t.Fatalf("unexpected fallback result %v", got)
	}
}

func TestTrends24FetchKeywords(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/india/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(trendsPage))
	}))
	defer server.Close()

	src := NewTrends24(server.URL, server.Client(), nil)
	tags, err := src.FetchKeywords(context.Background(), "IN", 2)
	if err != nil {
		t.Fatalf("FetchKeywords: %v", err)
	}
	if len(tags) != 2 || tags[0] != "#NeerajChopra" {
		t.Fatalf("unexpected tags %v", tags)
	}
}

func TestTrends24Failures(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	src := NewTrends24(server.URL, server.Client(), nil)
	if _, err := src.FetchKeywords(context.Background(), "us", 5); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected SourceUnavailable on bad status, got %v", err)
	}
	if _, err := src.FetchKeywords(context.Background(), "zz", 5); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected SourceUnavailable for unknown region, got %v", err)
	}
}
