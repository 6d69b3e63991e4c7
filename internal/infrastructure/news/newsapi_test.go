package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/scanner"
)

func TestNewsAPIScannerTopHeadlines(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/top-headlines" || q.Get("country") != "us" || q.Get("category") != "business" || q.Get("apiKey") != "k" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`{
		  "status": "ok",
		  "totalResults": 2,
		  "articles": [
		    {"source": {"id": null, "name": "Wire"}, "title": "Markets rally", "description": "Stocks up.",
		     "url": "https://wire.example.com/markets", "urlToImage": "https://wire.example.com/m.jpg",
		     "publishedAt": "2026-03-02T10:00:00Z"},
		    {"source": {"name": "Wire"}, "title": "[Removed]", "url": "https://removed.com"}
		  ]
		}`))
	}))
	defer server.Close()

	sc := NewNewsAPIScanner(server.Client(), server.URL, StaticKey("k"))
	items, err := sc.Scan(context.Background(), scanner.Request{
		Query:  domain.Query{Category: domain.CategoryBusiness},
		Region: "us",
		Max:    5,
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected removed article to be dropped, got %d items", len(items))
	}
	if items[0].SourceName != "Wire" || items[0].ImageURL != "https://wire.example.com/m.jpg" {
		t.Fatalf("unexpected item %+v", items[0])
	}
}

func TestNewsAPIScannerEverythingForKeywords(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/everything" || r.URL.Query().Get("q") != "Budget" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":0,"articles":[]}`))
	}))
	defer server.Close()

	sc := NewNewsAPIScanner(server.Client(), server.URL, StaticKey("k"))
	if _, err := sc.Scan(context.Background(), scanner.Request{Query: domain.Query{Keyword: "Budget"}}); err != nil {
		t.Fatalf("Scan error: %v", err)
	}
}

func TestNewsAPIScannerErrorCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusTooManyRequests, `{"status":"error","code":"rateLimited","message":"slow down"}`, domain.ErrQuotaExceeded},
		{http.StatusUnauthorized, `{"status":"error","code":"apiKeyExhausted","message":"out"}`, domain.ErrQuotaExceeded},
		{http.StatusUnauthorized, `{"status":"error","code":"apiKeyInvalid","message":"bad"}`, domain.ErrSourceUnavailable},
		{http.StatusBadGateway, `<html>bad gateway</html>`, domain.ErrSourceUnavailable},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		sc := NewNewsAPIScanner(server.Client(), server.URL, StaticKey("k"))
		_, err := sc.Scan(context.Background(), scanner.Request{Query: domain.Query{Category: domain.CategoryHealth}})
		server.Close()

		if !errors.Is(err, tc.want) {
			t.Fatalf("body %s: expected %v, got %v", tc.body, tc.want, err)
		}
	}
}
