package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"NewsShorts/internal/config"
	"NewsShorts/internal/domain"
	"NewsShorts/internal/infrastructure/news"
	"NewsShorts/internal/infrastructure/render"
	"NewsShorts/internal/infrastructure/scheduler"
	"NewsShorts/internal/infrastructure/status"
	"NewsShorts/internal/infrastructure/storage"
	"NewsShorts/internal/infrastructure/telegram"
	"NewsShorts/internal/infrastructure/trends"
	"NewsShorts/internal/infrastructure/video"
	"NewsShorts/internal/infrastructure/youtube"
	"NewsShorts/internal/logging"
	"NewsShorts/internal/metadata"
	"NewsShorts/internal/ports"
	"NewsShorts/internal/scanner"
	"NewsShorts/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	history *storage.SQLHistory
	ledger  ports.KeywordLedger
	redis   *storage.RedisLedger

	pipeline *usecase.Pipeline
}

// New opens the history store (and the Redis ledger when configured).
// Publishing adapters are built on first use so history commands need no credentials.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	history, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	a := &Application{cfg: cfg, logger: baseLogger, history: history, ledger: history}
	if cfg.Redis.Addr != "" {
		redis, err := storage.NewRedisLedger(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			history.Close()
			return nil, fmt.Errorf("connect redis ledger: %w", err)
		}
		a.redis = redis
		a.ledger = redis
	}
	return a, nil
}

// Close releases the stores.
func (a *Application) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	return errors.Join(errs...)
}

// Pipeline builds the full orchestration pipeline once.
func (a *Application) Pipeline() (*usecase.Pipeline, error) {
	if a.pipeline != nil {
		return a.pipeline, nil
	}

	cfg := a.cfg
	log := a.logger

	registry := scanner.NewRegistry()
	registry.Register(news.NewGNewsScanner(nil, cfg.News.GNews.BaseURL, news.StaticKey(cfg.News.GNews.APIKey)))
	registry.Register(news.NewNewsAPIScanner(nil, cfg.News.NewsAPI.BaseURL, news.StaticKey(cfg.News.NewsAPI.APIKey)))
	if _, err := registry.Resolve(cfg.News.Provider); err != nil {
		return nil, err
	}

	source := news.NewStrategySource(registry, news.Options{
		Provider:    cfg.News.Provider,
		Language:    cfg.News.Language,
		MaxPerQuery: cfg.News.MaxArticlesPerQuery,
		Lookback:    time.Duration(cfg.News.LookbackHours) * time.Hour,
	}, log.With("component", "source"))

	categories := make([]domain.Category, 0, len(cfg.News.Categories))
	for _, name := range cfg.News.Categories {
		c, err := domain.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	renderer := render.NewRenderer(
		render.NewChromeSurface(cfg.Render.ChromePath, cfg.Render.Timeout),
		render.Options{Width: cfg.Render.Width, Height: cfg.Render.Height, Location: cfg.Render.DisplayLocation()},
		log.With("component", "render"),
	)

	composer := video.NewFFmpegComposer(nil, video.Options{
		FFmpegPath:    cfg.Video.FFmpegPath,
		FFprobePath:   cfg.Video.FFprobePath,
		OutputDir:     cfg.Video.OutputDir,
		OverlayHeight: cfg.Video.OverlayHeight,
		OverlayOffset: cfg.Video.OverlayOffset,
		OverlayStart:  cfg.Video.OverlayStart,
		OverlayEnd:    cfg.Video.OverlayEnd,
		MaxDuration:   cfg.Video.MaxDurationSeconds,
		FPS:           cfg.Video.FPS,
		MusicVolume:   cfg.Video.MusicVolume,
	}, log.With("component", "video"))

	cred, err := youtube.NewFileTokenProvider(cfg.YouTube.ClientSecretsFile, cfg.YouTube.TokenFile, log.With("component", "youtube.auth"))
	if err != nil {
		return nil, fmt.Errorf("youtube credentials: %w", err)
	}
	publisher := youtube.NewPublisher(cred, cfg.YouTube.Endpoint, log.With("component", "youtube"))

	builder := metadata.NewBuilder(metadata.Options{
		MaxTags:           cfg.YouTube.MaxTags,
		Privacy:           cfg.YouTube.Privacy,
		DefaultCategoryID: cfg.YouTube.DefaultCategoryID,
		CategoryIDs:       cfg.YouTube.CategoryIDs,
		Playlists:         cfg.YouTube.Playlists,
	})

	var notifier ports.Notifier
	tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID, cfg.Notifications.Telegram.BaseURL)
	if tg.Enabled() {
		notifier = tg
	}

	tmpl := render.DefaultTemplate
	if cfg.Render.TemplatePath != "" {
		tmpl = domain.CardTemplate{Name: cfg.Render.TemplatePath, Path: cfg.Render.TemplatePath}
	}

	var audio *domain.Asset
	if cfg.Video.Audio != "" {
		audio = &domain.Asset{Path: cfg.Video.Audio}
	}
	if _, err := os.Stat(cfg.Video.BaseVideo); err != nil {
		return nil, fmt.Errorf("base video: %w", err)
	}
	assets, err := categoryAssets(cfg.Video.Assets)
	if err != nil {
		return nil, err
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:    source,
		Trending:  trends.NewTrends24(cfg.Trending.BaseURL, nil, log.With("component", "trending")),
		History:   a.history,
		Ledger:    a.ledger,
		Renderer:  renderer,
		Composer:  composer,
		Publisher: publisher,
		Metadata:  builder,
		Notifier:  notifier,
		Logger:    log,
	}, usecase.PipelineOptions{
		Categories:       categories,
		ManualKeywords:   cfg.Trending.Keywords(),
		TrendingCount:    cfg.Trending.Count,
		TargetNewItems:   cfg.Pipeline.TargetNewItems,
		MaxProviderCalls: cfg.Pipeline.MaxProviderCalls,
		Workers:          cfg.Pipeline.Workers,
		PublishAttempts:  cfg.Pipeline.PublishAttempts,
		RetryBaseDelay:   cfg.Pipeline.RetryBaseDelay,
		Template:         tmpl,
		BaseVideo:        domain.Asset{Path: cfg.Video.BaseVideo},
		Audio:            audio,
		CategoryAssets:   assets,
		Location:         cfg.Render.DisplayLocation(),
		Retention:        time.Duration(cfg.Pipeline.RetentionDays) * 24 * time.Hour,
	})
	return a.pipeline, nil
}

// categoryAssets validates the per-category asset overrides.
func categoryAssets(raw map[string]config.AssetConfig) (map[domain.Category]usecase.MediaAssets, error) {
	out := make(map[domain.Category]usecase.MediaAssets, len(raw))
	for name, a := range raw {
		c, err := domain.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("video assets: %w", err)
		}
		var m usecase.MediaAssets
		if a.BaseVideo != "" {
			if _, err := os.Stat(a.BaseVideo); err != nil {
				return nil, fmt.Errorf("base video for %s: %w", c, err)
			}
			m.BaseVideo = domain.Asset{Path: a.BaseVideo}
		}
		if a.Audio != "" {
			m.Audio = &domain.Asset{Path: a.Audio}
		}
		out[c] = m
	}
	return out, nil
}

// Run executes modes once, bounded by the configured run timeout.
func (a *Application) Run(ctx context.Context, modes []domain.Mode) ([]domain.RunReport, error) {
	p, err := a.Pipeline()
	if err != nil {
		return nil, err
	}
	if a.cfg.Pipeline.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Pipeline.RunTimeout)
		defer cancel()
	}
	return p.RunAll(ctx, modes)
}

// Schedule runs modes on the configured cron until ctx ends. The status API
// is served alongside when status.listen is set.
func (a *Application) Schedule(ctx context.Context, modes []domain.Mode) error {
	p, err := a.Pipeline()
	if err != nil {
		return err
	}

	driver, err := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), a.logger.With("component", "cron"))
	if err != nil {
		return err
	}
	sched := usecase.NewScheduler(driver, p, modes, a.cfg.Pipeline.RunTimeout, a.logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	if a.cfg.Status.Listen != "" {
		srv := status.NewServer(a.history, sched, a.logger)
		go func() {
			if err := srv.ListenAndServe(ctx, a.cfg.Status.Listen); err != nil {
				a.logger.Error("status api stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	return sched.Stop(stopCtx)
}

// History lists the most recent history records.
func (a *Application) History(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	return a.history.Recent(ctx, limit)
}

// Prune deletes history older than days, defaulting to the configured retention.
func (a *Application) Prune(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = a.cfg.Pipeline.RetentionDays
	}
	if days <= 0 {
		return 0, errors.New("retention days must be positive")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	n, err := a.history.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	a.logger.Info("history pruned", "removed", n, "older_than", cutoff)
	return n, nil
}
