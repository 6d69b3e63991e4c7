package news

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/ports"
	"NewsShorts/internal/scanner"
)

// ErrSequenceConsumed is yielded when a fetched sequence is ranged over twice.
var ErrSequenceConsumed = errors.New("news sequence already consumed")

// Options tunes provider requests issued by StrategySource.
type Options struct {
	Provider    string
	Language    string
	MaxPerQuery int
	Lookback    time.Duration
}

// StrategySource implements NewsSource via a registered scanner strategy.
type StrategySource struct {
	registry *scanner.Registry
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

var _ ports.NewsSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with provider options.
func NewStrategySource(reg *scanner.Registry, opts Options, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		opts:     opts,
		logger:   log,
		now:      time.Now,
	}
}

// Fetch returns a lazy sequence over req.Queries. Each query is one provider call
// issued only when the consumer pulls past the previous query's items; at most
// req.Limit calls are made. SourceUnavailable is yielded and the next query is
// tried; QuotaExceeded is yielded and ends the sequence.
func (s *StrategySource) Fetch(ctx context.Context, req domain.FetchRequest) iter.Seq2[domain.NewsItem, error] {
	var consumed atomic.Bool

	return func(yield func(domain.NewsItem, error) bool) {
		if consumed.Swap(true) {
			yield(domain.NewsItem{}, ErrSequenceConsumed)
			return
		}
		if s.registry == nil {
			yield(domain.NewsItem{}, fmt.Errorf("scanner registry is not configured"))
			return
		}
		strategy, err := s.registry.Resolve(s.opts.Provider)
		if err != nil {
			yield(domain.NewsItem{}, err)
			return
		}

		calls := 0
		for _, q := range req.Queries {
			if req.Limit > 0 && calls >= req.Limit {
				s.debug("provider call budget reached", "limit", req.Limit)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(domain.NewsItem{}, err)
				return
			}

			calls++
			scanReq := scanner.Request{
				Query:    q,
				Region:   req.Region,
				Language: s.opts.Language,
				Max:      s.opts.MaxPerQuery,
			}
			if s.opts.Lookback > 0 {
				scanReq.From = s.now().Add(-s.opts.Lookback)
			}

			s.debug("query provider", "provider", strategy.Name(), "query", q.String(), "call", calls)
			items, err := strategy.Scan(ctx, scanReq)
			if err != nil {
				if !yield(domain.NewsItem{}, fmt.Errorf("query %s: %w", q, err)) {
					return
				}
				if errors.Is(err, domain.ErrQuotaExceeded) || ctx.Err() != nil {
					return
				}
				continue
			}

			s.debug("query produced items", "query", q.String(), "count", len(items))
			for _, item := range items {
				if item.SourceName == "" {
					item.SourceName = strategy.Name()
				}
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
