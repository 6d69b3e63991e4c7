package news

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/scanner"
)

type scriptedScanner struct {
	calls   []scanner.Request
	results map[string][]domain.NewsItem
	errs    map[string]error
}

func (s *scriptedScanner) Name() string { return "scripted" }

func (s *scriptedScanner) Scan(_ context.Context, req scanner.Request) ([]domain.NewsItem, error) {
	s.calls = append(s.calls, req)
	key := req.Query.String()
	if err, ok := s.errs[key]; ok {
		return nil, err
	}
	return s.results[key], nil
}

func newScripted() *scriptedScanner {
	mk := func(q domain.Query, n int) []domain.NewsItem {
		items := make([]domain.NewsItem, n)
		for i := range items {
			title := fmt.Sprintf("%s story %d", q, i)
			items[i] = domain.NewsItem{ID: domain.ItemID("", title, "wire"), Title: title, Category: q.Category, Keyword: q.Keyword}
		}
		return items
	}
	sports := domain.Query{Category: domain.CategorySports}
	world := domain.Query{Category: domain.CategoryWorld}
	health := domain.Query{Category: domain.CategoryHealth}
	return &scriptedScanner{
		results: map[string][]domain.NewsItem{
			sports.String(): mk(sports, 2),
			world.String():  mk(world, 2),
			health.String(): mk(health, 2),
		},
		errs: map[string]error{},
	}
}

func newTestSource(sc *scriptedScanner) *StrategySource {
	reg := scanner.NewRegistry()
	reg.Register(sc)
	src := NewStrategySource(reg, Options{Provider: "scripted", Language: "en", MaxPerQuery: 5, Lookback: 2 * time.Hour}, nil)
	src.now = func() time.Time { return time.Date(2026, time.May, 5, 12, 0, 0, 0, time.UTC) }
	return src
}

var threeQueries = []domain.Query{
	{Category: domain.CategorySports},
	{Category: domain.CategoryWorld},
	{Category: domain.CategoryHealth},
}

func TestStrategySourceIsLazy(t *testing.T) {
	t.Parallel()

	sc := newScripted()
	src := newTestSource(sc)

	for item, err := range src.Fetch(context.Background(), domain.FetchRequest{Queries: threeQueries, Region: "in"}) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.Category != domain.CategorySports {
			t.Fatalf("unexpected first item %+v", item)
		}
		break
	}

	if len(sc.calls) != 1 {
		t.Fatalf("expected a single provider call after early stop, got %d", len(sc.calls))
	}
	req := sc.calls[0]
	if req.Region != "in" || req.Language != "en" || req.Max != 5 {
		t.Fatalf("unexpected request %+v", req)
	}
	if want := time.Date(2026, time.May, 5, 10, 0, 0, 0, time.UTC); !req.From.Equal(want) {
		t.Fatalf("expected lookback window start %v, got %v", want, req.From)
	}
}

func TestStrategySourceRespectsCallLimit(t *testing.T) {
	t.Parallel()

	sc := newScripted()
	src := newTestSource(sc)

	count := 0
	for _, err := range src.Fetch(context.Background(), domain.FetchRequest{Queries: threeQueries, Limit: 2}) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		count++
	}
	if len(sc.calls) != 2 || count != 4 {
		t.Fatalf("expected 2 calls and 4 items, got %d calls %d items", len(sc.calls), count)
	}
}

func TestStrategySourceContinuesAfterUnavailable(t *testing.T) {
	t.Parallel()

	sc := newScripted()
	sc.errs[threeQueries[0].String()] = fmt.Errorf("%w: timeout", domain.ErrSourceUnavailable)
	src := newTestSource(sc)

	var errs, items int
	for _, err := range src.Fetch(context.Background(), domain.FetchRequest{Queries: threeQueries}) {
		if err != nil {
			if !errors.Is(err, domain.ErrSourceUnavailable) {
				t.Fatalf("unexpected error kind: %v", err)
			}
			errs++
			continue
		}
		items++
	}
	if errs != 1 || items != 4 || len(sc.calls) != 3 {
		t.Fatalf("got errs=%d items=%d calls=%d", errs, items, len(sc.calls))
	}
}

func TestStrategySourceStopsOnQuota(t *testing.T) {
	t.Parallel()

	sc := newScripted()
	sc.errs[threeQueries[1].String()] = fmt.Errorf("%w: 429", domain.ErrQuotaExceeded)
	src := newTestSource(sc)

	var items int
	var last error
	for _, err := range src.Fetch(context.Background(), domain.FetchRequest{Queries: threeQueries}) {
		if err != nil {
			last = err
			continue
		}
		items++
	}
	if !errors.Is(last, domain.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", last)
	}
	if items != 2 || len(sc.calls) != 2 {
		t.Fatalf("expected no calls after quota, got items=%d calls=%d", items, len(sc.calls))
	}
}

func TestStrategySourceIsNotRestartable(t *testing.T) {
	t.Parallel()

	src := newTestSource(newScripted())
	seq := src.Fetch(context.Background(), domain.FetchRequest{Queries: threeQueries[:1]})
	for range seq {
	}

	var got error
	for _, err := range seq {
		got = err
	}
	if !errors.Is(got, ErrSequenceConsumed) {
		t.Fatalf("expected ErrSequenceConsumed, got %v", got)
	}
}

func TestStrategySourceUnknownProvider(t *testing.T) {
	t.Parallel()

	src := NewStrategySource(scanner.NewRegistry(), Options{Provider: "missing"}, nil)
	for _, err := range src.Fetch(context.Background(), domain.FetchRequest{Queries: threeQueries}) {
		if err == nil {
			t.Fatalf("expected resolve error")
		}
		return
	}
	t.Fatalf("expected one error element")
}
