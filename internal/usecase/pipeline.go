package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/metadata"
	"NewsShorts/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
// Trending, Ledger and Notifier are optional.
type PipelineDeps struct {
	Source    ports.NewsSource
	Trending  ports.TrendingSource
	History   ports.HistoryStore
	Ledger    ports.KeywordLedger
	Renderer  ports.CardRenderer
	Composer  ports.VideoComposer
	Publisher ports.Publisher
	Metadata  ports.MetadataBuilder
	Notifier  ports.Notifier
	Logger    *slog.Logger
}

// PipelineOptions holds run policy.
type PipelineOptions struct {
	Categories       []domain.Category
	ManualKeywords   []string
	TrendingCount    int
	TargetNewItems   int
	MaxProviderCalls int
	Workers          int
	PublishAttempts  int
	RetryBaseDelay   time.Duration
	Template         domain.CardTemplate
	BaseVideo        domain.Asset
	Audio            *domain.Asset
	// CategoryAssets replaces BaseVideo and Audio for items of a category.
	CategoryAssets map[domain.Category]MediaAssets
	// Location decides the calendar day used by the keyword ledger.
	Location *time.Location
	// Retention prunes older history at run start when positive.
	Retention time.Duration

	NewRunID func() string
	Now      func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error
}

// MediaAssets is the base video and optional audio bed composed under a card.
type MediaAssets struct {
	BaseVideo domain.Asset
	Audio     *domain.Asset
}

// Pipeline turns fetched news into published shorts.
type Pipeline struct {
	source    ports.NewsSource
	trending  ports.TrendingSource
	history   ports.HistoryStore
	ledger    ports.KeywordLedger
	renderer  ports.CardRenderer
	composer  ports.VideoComposer
	publisher ports.Publisher
	metadata  ports.MetadataBuilder
	notifier  ports.Notifier
	logger    *slog.Logger
	opts      PipelineOptions
}

// NewPipeline constructs the orchestration component and fills option defaults.
func NewPipeline(deps PipelineDeps, opts PipelineOptions) *Pipeline {
	if len(opts.Categories) == 0 {
		opts.Categories = domain.Categories
	}
	if opts.TrendingCount <= 0 {
		opts.TrendingCount = 5
	}
	if opts.TargetNewItems <= 0 {
		opts.TargetNewItems = 10
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PublishAttempts <= 0 {
		opts.PublishAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 2 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		source:    deps.Source,
		trending:  deps.Trending,
		history:   deps.History,
		ledger:    deps.Ledger,
		renderer:  deps.Renderer,
		composer:  deps.Composer,
		publisher: deps.Publisher,
		metadata:  deps.Metadata,
		notifier:  deps.Notifier,
		logger:    logger.With("component", "pipeline"),
		opts:      opts,
	}
}

// job is one admitted item travelling from the worker pool to the publisher.
type job struct {
	item  domain.NewsItem
	done  chan struct{}
	video domain.ComposedVideo
	err   error
}

// runState carries the halt signals shared by intake, workers and the publisher.
type runState struct {
	mu          sync.Mutex
	fatal       error
	stopIntake  atomic.Bool
	stopPublish atomic.Bool
}

// haltIntake stops admitting items; admitted items still finish.
func (s *runState) haltIntake(err error) {
	s.setFatal(err)
	s.stopIntake.Store(true)
}

// abort stops intake and leaves every not yet published item unrecorded.
func (s *runState) abort(err error) {
	s.setFatal(err)
	s.stopIntake.Store(true)
	s.stopPublish.Store(true)
}

func (s *runState) setFatal(err error) {
	s.mu.Lock()
	if s.fatal == nil {
		s.fatal = err
	}
	s.mu.Unlock()
}

func (s *runState) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

// Run processes one mode. The returned error covers setup problems only;
// per-item failures and run-fatal aborts are reported in the RunReport.
func (p *Pipeline) Run(ctx context.Context, mode domain.Mode) (domain.RunReport, error) {
	if err := p.validate(mode); err != nil {
		return domain.RunReport{}, err
	}

	report := domain.RunReport{
		RunID:     p.opts.NewRunID(),
		Mode:      mode,
		StartedAt: p.opts.Now().UTC(),
	}
	log := p.logger.With("run_id", report.RunID, "mode", mode.String())
	log.Info("run started")
	p.prune(ctx, log)

	queries := p.queries(ctx, mode, log)
	report.Queries = len(queries)
	if len(queries) == 0 {
		log.Warn("no queries to run")
		report.FinishedAt = p.opts.Now().UTC()
		p.notify(ctx, report, log)
		return report, nil
	}

	state := &runState{}
	queue := make(chan *job, p.opts.TargetNewItems)
	outcomes := make([]domain.ItemOutcome, 0, p.opts.TargetNewItems)
	published := make(chan struct{})
	runID := report.RunID

	go func() {
		defer close(published)
		marked := map[string]bool{}
		for j := range queue {
			<-j.done
			outcome := p.finish(ctx, state, j, runID, log)
			outcomes = append(outcomes, outcome)
			p.markKeyword(ctx, mode, j.item, outcome, marked, log)
		}
	}()

	var workers errgroup.Group
	workers.SetLimit(p.opts.Workers)

	req := domain.FetchRequest{Queries: queries, Region: mode.Region, Limit: p.opts.MaxProviderCalls}
	seen := map[string]struct{}{}
	admitted := 0
	for item, err := range p.source.Fetch(ctx, req) {
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if domain.IsFatal(err) {
				log.Error("news source fatal error, halting intake", "error", err)
				state.haltIntake(err)
				break
			}
			log.Warn("news source error", "error", err, "kind", domain.ErrorKind(err))
			continue
		}
		if state.stopIntake.Load() || ctx.Err() != nil {
			break
		}

		report.Fetched++
		if _, dup := seen[item.ID]; dup {
			report.Duplicates++
			continue
		}
		seen[item.ID] = struct{}{}

		processed, err := p.history.IsProcessed(ctx, item.ID)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error("history lookup failed, halting intake", "item_id", item.ID, "error", err)
			state.haltIntake(fmt.Errorf("history lookup: %w", err))
			break
		}
		if processed {
			report.Duplicates++
			log.Debug("already published", "item_id", item.ID)
			continue
		}

		j := &job{item: item, done: make(chan struct{})}
		queue <- j
		workers.Go(func() error {
			p.prepare(ctx, state, j)
			return nil
		})

		admitted++
		if admitted >= p.opts.TargetNewItems {
			log.Debug("target reached", "target", p.opts.TargetNewItems)
			break
		}
	}
	close(queue)

	_ = workers.Wait()
	<-published

	report.Items = outcomes
	report.Fatal = state.err()
	report.FinishedAt = p.opts.Now().UTC()

	attrs := []any{
		"admitted", admitted,
		"published", report.Count(domain.StatusPublished),
		"skipped", report.Count(domain.StatusSkipped),
		"failed", report.Count(domain.StatusFailed),
		"unrecorded", report.Count(domain.StatusUnrecorded),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	}
	if report.Aborted() {
		log.Error("run aborted", append(attrs, "error", report.Fatal)...)
	} else {
		log.Info("run finished", attrs...)
	}

	p.notify(ctx, report, log)
	return report, nil
}

// RunAll runs modes in order and stops after the first aborted run.
// It returns the context error when the runs were interrupted, including
// an interruption during the last mode.
func (p *Pipeline) RunAll(ctx context.Context, modes []domain.Mode) ([]domain.RunReport, error) {
	reports := make([]domain.RunReport, 0, len(modes))
	for _, mode := range modes {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := p.Run(ctx, mode)
		if err != nil {
			return reports, fmt.Errorf("run %s: %w", mode, err)
		}
		reports = append(reports, report)
		if report.Aborted() {
			break
		}
	}
	return reports, ctx.Err()
}

func (p *Pipeline) validate(mode domain.Mode) error {
	if p.source == nil || p.history == nil || p.renderer == nil || p.composer == nil || p.publisher == nil || p.metadata == nil {
		return errors.New("pipeline is missing a required dependency")
	}
	if err := domain.ValidateRegion(mode.Region); err != nil {
		return err
	}
	if mode.Kind != domain.ModeCategories && mode.Kind != domain.ModeKeywords {
		return fmt.Errorf("unsupported mode %s", mode)
	}
	return nil
}

// queries lists the provider queries for mode. Keyword queries already
// answered today are left out; a trending outage falls back to manual keywords.
func (p *Pipeline) queries(ctx context.Context, mode domain.Mode, log *slog.Logger) []domain.Query {
	if mode.Kind == domain.ModeCategories {
		out := make([]domain.Query, 0, len(p.opts.Categories))
		for _, c := range p.opts.Categories {
			out = append(out, domain.Query{Category: c})
		}
		return out
	}

	candidates := append([]string(nil), p.opts.ManualKeywords...)
	if p.trending != nil {
		trending, err := p.trending.FetchKeywords(ctx, mode.Region, p.opts.TrendingCount)
		if err != nil {
			log.Warn("trending keywords unavailable, using manual keywords", "error", err)
		} else {
			candidates = append(candidates, trending...)
		}
	}

	day := p.opts.Now().In(p.opts.Location)
	seen := map[string]bool{}
	var out []domain.Query
	for _, raw := range candidates {
		kw := normalizeKeyword(raw)
		key := ledgerKey(mode.Region, kw)
		if kw == "" || seen[key] {
			continue
		}
		seen[key] = true

		if p.ledger != nil {
			done, err := p.ledger.SeenToday(ctx, key, day)
			if err != nil {
				log.Warn("keyword ledger lookup failed", "keyword", kw, "error", err)
			} else if done {
				log.Debug("keyword already covered today", "keyword", kw)
				continue
			}
		}
		out = append(out, domain.Query{Keyword: kw})
	}
	return out
}

// prepare renders and composes j on a worker. It never fails the group;
// the error stays on the job for the publisher to account.
func (p *Pipeline) prepare(ctx context.Context, state *runState, j *job) {
	defer close(j.done)

	if state.stopPublish.Load() || ctx.Err() != nil {
		return
	}

	card, err := p.renderer.Render(ctx, j.item, p.opts.Template)
	if err != nil {
		j.err = err
		return
	}
	assets := p.assetsFor(j.item)
	video, err := p.composer.Compose(ctx, assets.BaseVideo, card, assets.Audio)
	if err != nil {
		j.err = err
		return
	}
	j.video = video
}

// finish publishes and records j. Only this goroutine commits history, so
// commits are serialized in admission order.
func (p *Pipeline) finish(ctx context.Context, state *runState, j *job, runID string, log *slog.Logger) domain.ItemOutcome {
	log = log.With("item_id", j.item.ID)
	defer p.release(j, log)

	out := domain.ItemOutcome{
		ItemID: j.item.ID,
		Title:  j.item.Title,
		Query:  itemQuery(j.item).String(),
	}

	if state.stopPublish.Load() {
		out.Status = domain.StatusUnrecorded
		out.Reason = "run aborted before publish"
		return out
	}
	if ctx.Err() != nil {
		out.Status = domain.StatusUnrecorded
		out.Reason = "run cancelled"
		return out
	}

	if j.err != nil {
		log.Warn("item skipped", "error", j.err, "kind", domain.ErrorKind(j.err))
		return p.record(ctx, state, j, runID, domain.OutcomeSkipped, "", j.err.Error(), out, log)
	}

	meta := p.metadata.Build(j.item)
	result, err := p.publish(ctx, j, meta, log)
	if err != nil {
		if ctx.Err() != nil {
			out.Status = domain.StatusUnrecorded
			out.Reason = "run cancelled during publish"
			return out
		}
		if domain.IsFatal(err) {
			log.Error("publish fatal error, aborting run", "error", err, "kind", domain.ErrorKind(err))
			state.abort(err)
		} else {
			log.Warn("publish failed", "error", err, "kind", domain.ErrorKind(err))
		}
		return p.record(ctx, state, j, runID, domain.OutcomeFailed, "", err.Error(), out, log)
	}

	// The video is live; record it even if the run is being cancelled.
	log.Info("item published", "video_id", result.RemoteVideoID, "title", j.item.Title)
	return p.record(context.WithoutCancel(ctx), state, j, runID, domain.OutcomePublished, result.RemoteVideoID, "", out, log)
}

func (p *Pipeline) record(ctx context.Context, state *runState, j *job, runID string, outcome domain.Outcome, videoID, reason string, out domain.ItemOutcome, log *slog.Logger) domain.ItemOutcome {
	out.RemoteVideoID = videoID
	out.Reason = reason

	err := p.history.Commit(ctx, domain.HistoryRecord{
		ItemID:        j.item.ID,
		RunID:         runID,
		ProcessedAt:   p.opts.Now().UTC(),
		Outcome:       outcome,
		RemoteVideoID: videoID,
		Title:         j.item.Title,
		SourceURL:     j.item.SourceURL,
		Reason:        reason,
	})
	switch {
	case err == nil:
		out.Status = domain.ItemStatus(outcome)
	case errors.Is(err, domain.ErrAlreadyPublished):
		log.Warn("item was published by another run", "video_id", videoID)
		out.Status = domain.ItemStatus(outcome)
	case ctx.Err() != nil:
		out.Status = domain.StatusUnrecorded
		out.Reason = "run cancelled before record"
	default:
		log.Error("history commit failed, aborting run", "outcome", outcome, "error", err)
		state.abort(fmt.Errorf("history commit: %w", err))
		out.Status = domain.StatusUnrecorded
		out.Reason = fmt.Sprintf("%s but not recorded: %v", outcome, err)
	}
	return out
}

// publish retries TransientUploadError with exponential backoff up to PublishAttempts.
func (p *Pipeline) publish(ctx context.Context, j *job, meta domain.VideoMetadata, log *slog.Logger) (domain.PublishResult, error) {
	for attempt := 1; ; attempt++ {
		result, err := p.publisher.Publish(ctx, j.video, meta)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, domain.ErrTransientUpload) || attempt >= p.opts.PublishAttempts {
			if attempt > 1 {
				err = fmt.Errorf("after %d attempts: %w", attempt, err)
			}
			return domain.PublishResult{}, err
		}

		delay := p.opts.RetryBaseDelay << (attempt - 1)
		log.Warn("transient publish error, retrying", "attempt", attempt, "delay", delay, "error", err)
		if err := p.opts.Sleep(ctx, delay); err != nil {
			return domain.PublishResult{}, err
		}
	}
}

// assetsFor picks the category's assets, falling back to the defaults for
// anything the category leaves unset.
func (p *Pipeline) assetsFor(item domain.NewsItem) MediaAssets {
	assets := MediaAssets{BaseVideo: p.opts.BaseVideo, Audio: p.opts.Audio}
	override, ok := p.opts.CategoryAssets[item.Category]
	if !ok {
		return assets
	}
	if override.BaseVideo.Path != "" {
		assets.BaseVideo = override.BaseVideo
	}
	if override.Audio != nil {
		assets.Audio = override.Audio
	}
	return assets
}

func (p *Pipeline) release(j *job, log *slog.Logger) {
	if j.video.FilePath == "" {
		return
	}
	if err := p.composer.Release(j.video); err != nil {
		log.Warn("release composed video failed", "path", j.video.FilePath, "error", err)
	}
}

// markKeyword records a keyword as answered once one of its items was
// published. Skipped and failed items leave the keyword open for a retry.
func (p *Pipeline) markKeyword(ctx context.Context, mode domain.Mode, item domain.NewsItem, out domain.ItemOutcome, marked map[string]bool, log *slog.Logger) {
	if p.ledger == nil || item.Keyword == "" || out.Status != domain.StatusPublished {
		return
	}
	key := ledgerKey(mode.Region, normalizeKeyword(item.Keyword))
	if marked[key] {
		return
	}
	marked[key] = true
	if err := p.ledger.Mark(context.WithoutCancel(ctx), key, p.opts.Now().In(p.opts.Location)); err != nil {
		log.Warn("keyword ledger mark failed", "keyword", item.Keyword, "error", err)
	}
}

func (p *Pipeline) prune(ctx context.Context, log *slog.Logger) {
	if p.opts.Retention <= 0 {
		return
	}
	cutoff := p.opts.Now().UTC().Add(-p.opts.Retention)
	n, err := p.history.Prune(ctx, cutoff)
	if err != nil {
		log.Warn("history prune failed", "error", err)
		return
	}
	if n > 0 {
		log.Info("history pruned", "removed", n, "older_than", cutoff)
	}
}

func (p *Pipeline) notify(ctx context.Context, report domain.RunReport, log *slog.Logger) {
	if p.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := p.notifier.PublishReport(nctx, FormatReport(report)); err != nil {
		log.Warn("run report notification failed", "error", err)
	}
}

func itemQuery(item domain.NewsItem) domain.Query {
	if item.Keyword != "" {
		return domain.Query{Keyword: item.Keyword}
	}
	return domain.Query{Category: item.Category}
}

// normalizeKeyword turns a trending hashtag or manual keyword into a search phrase.
func normalizeKeyword(raw string) string {
	return metadata.NormalizeHashtag(strings.TrimLeft(strings.TrimSpace(raw), "#"))
}

func ledgerKey(region, keyword string) string {
	return region + ":" + strings.ToLower(keyword)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
