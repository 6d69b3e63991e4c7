package config

import (
	"bufio"
	"errors"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	defaultEnvFile  = ".env"

	configPathEnv       = "NEWSSHORTS_CONFIG"
	logLevelEnv         = "LOG_LEVEL"
	databaseDriverEnv   = "DATABASE_DRIVER"
	databaseDSNEnv      = "DATABASE_DSN"
	redisAddrEnv        = "REDIS_ADDR"
	newsRegionEnv       = "NEWS_REGION"
	gnewsAPIKeyEnv      = "GNEWS_API_KEY"
	newsAPIKeyEnv       = "NEWSAPI_API_KEY"
	youtubeSecretsEnv   = "YOUTUBE_CLIENT_SECRETS"
	youtubeTokenFileEnv = "YOUTUBE_TOKEN_FILE"
	telegramTokenEnv    = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv   = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	News          NewsConfig         `yaml:"news"`
	Trending      TrendingConfig     `yaml:"trending"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Render        RenderConfig       `yaml:"render"`
	Video         VideoConfig        `yaml:"video"`
	YouTube       YouTubeConfig      `yaml:"youtube"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Status        StatusConfig       `yaml:"status"`
}

// LoggingConfig selects slog level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes the history database. Driver is sqlite or postgres.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the Redis keyword ledger when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NewsConfig groups settings for news providers.
type NewsConfig struct {
	Provider            string          `yaml:"provider"`
	Region              string          `yaml:"region"`
	Language            string          `yaml:"language"`
	LookbackHours       int             `yaml:"lookbackHours"`
	MaxArticlesPerQuery int             `yaml:"maxArticlesPerQuery"`
	Categories          []string        `yaml:"categories"`
	GNews               ProviderAccount `yaml:"gnews"`
	NewsAPI             ProviderAccount `yaml:"newsapi"`
}

// ProviderAccount holds the endpoint and API key of a single provider.
type ProviderAccount struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
}

// TrendingConfig drives keyword mode.
type TrendingConfig struct {
	BaseURL            string   `yaml:"baseUrl"`
	Count              int      `yaml:"count"`
	ManualKeywords     []string `yaml:"manualKeywords"`
	ManualKeywordsFile string   `yaml:"manualKeywordsFile"`
}

// PipelineConfig bounds a single run.
type PipelineConfig struct {
	TargetNewItems   int           `yaml:"targetNewItems"`
	MaxProviderCalls int           `yaml:"maxProviderCalls"`
	Workers          int           `yaml:"workers"`
	PublishAttempts  int           `yaml:"publishAttempts"`
	RetryBaseDelay   time.Duration `yaml:"retryBaseDelay"`
	RunTimeout       time.Duration `yaml:"runTimeout"`
	RetentionDays    int           `yaml:"retentionDays"`
}

// RenderConfig describes the card template and the headless browser.
type RenderConfig struct {
	TemplatePath string        `yaml:"templatePath"`
	Width        int           `yaml:"width"`
	Height       int           `yaml:"height"`
	Timezone     string        `yaml:"timezone"`
	ChromePath   string        `yaml:"chromePath"`
	Timeout      time.Duration `yaml:"timeout"`
}

// VideoConfig holds composition policy and asset references.
type VideoConfig struct {
	FFmpegPath         string  `yaml:"ffmpegPath"`
	FFprobePath        string  `yaml:"ffprobePath"`
	BaseVideo          string  `yaml:"baseVideo"`
	Audio              string  `yaml:"audio"`
	OutputDir          string  `yaml:"outputDir"`
	OverlayHeight      int     `yaml:"overlayHeight"`
	OverlayOffset      int     `yaml:"overlayOffset"`
	OverlayStart       float64 `yaml:"overlayStart"`
	OverlayEnd         float64 `yaml:"overlayEnd"`
	MaxDurationSeconds float64 `yaml:"maxDurationSeconds"`
	FPS                int     `yaml:"fps"`
	// MusicVolume scales the audio bed when it is mixed under the base track.
	MusicVolume float64 `yaml:"musicVolume"`
	// Assets replaces baseVideo and audio for items of a news category.
	Assets map[string]AssetConfig `yaml:"assets"`
}

// AssetConfig names the base video and optional audio bed of one category.
type AssetConfig struct {
	BaseVideo string `yaml:"baseVideo"`
	Audio     string `yaml:"audio"`
}

// YouTubeConfig configures uploads.
type YouTubeConfig struct {
	ClientSecretsFile string            `yaml:"clientSecretsFile"`
	TokenFile         string            `yaml:"tokenFile"`
	Privacy           string            `yaml:"privacy"`
	MaxTags           int               `yaml:"maxTags"`
	DefaultCategoryID string            `yaml:"defaultCategoryId"`
	CategoryIDs       map[string]string `yaml:"categoryIds"`
	Playlists         map[string]string `yaml:"playlists"`
	Endpoint          string            `yaml:"endpoint"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	BaseURL  string `yaml:"baseUrl"`
}

// StatusConfig enables the status API in schedule mode when Listen is set.
type StatusConfig struct {
	Listen string `yaml:"listen"`
}

// Load reads .env, YAML configuration (if present) and applies environment overrides.
// An empty path falls back to NEWSSHORTS_CONFIG.
func Load(path string) Config {
	if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: cannot load %s: %v", defaultEnvFile, err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Keywords merges inline manual keywords with the lines of ManualKeywordsFile.
func (t TrendingConfig) Keywords() []string {
	keywords := append([]string(nil), t.ManualKeywords...)
	if t.ManualKeywordsFile == "" {
		return keywords
	}
	f, err := os.Open(t.ManualKeywordsFile)
	if err != nil {
		log.Printf("config: cannot read keywords file %s: %v", t.ManualKeywordsFile, err)
		return keywords
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		keywords = append(keywords, line)
	}
	return keywords
}

// DisplayLocation resolves the timezone used for dates printed on cards.
func (r RenderConfig) DisplayLocation() *time.Location {
	if r.Timezone != "" {
		if loc, err := time.LoadLocation(r.Timezone); err == nil {
			return loc
		}
		log.Printf("config: unknown render timezone %s, using UTC", r.Timezone)
	}
	return time.UTC
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Addr = v
	}

	if v := os.Getenv(newsRegionEnv); v != "" {
		c.News.Region = v
	}
	if v := os.Getenv(gnewsAPIKeyEnv); v != "" {
		c.News.GNews.APIKey = v
	}
	if v := os.Getenv(newsAPIKeyEnv); v != "" {
		c.News.NewsAPI.APIKey = v
	}

	if v := os.Getenv(youtubeSecretsEnv); v != "" {
		c.YouTube.ClientSecretsFile = v
	}
	if v := os.Getenv(youtubeTokenFileEnv); v != "" {
		c.YouTube.TokenFile = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Redis.Addr != "" {
		base.Redis = override.Redis
	}

	base.News = mergeNews(base.News, override.News)

	if override.Trending.BaseURL != "" {
		base.Trending.BaseURL = override.Trending.BaseURL
	}
	if override.Trending.Count > 0 {
		base.Trending.Count = override.Trending.Count
	}
	if len(override.Trending.ManualKeywords) > 0 {
		base.Trending.ManualKeywords = override.Trending.ManualKeywords
	}
	if override.Trending.ManualKeywordsFile != "" {
		base.Trending.ManualKeywordsFile = override.Trending.ManualKeywordsFile
	}

	base.Pipeline = mergePipeline(base.Pipeline, override.Pipeline)

	if override.Render.TemplatePath != "" {
		base.Render.TemplatePath = override.Render.TemplatePath
	}
	if override.Render.Width > 0 {
		base.Render.Width = override.Render.Width
	}
	if override.Render.Height > 0 {
		base.Render.Height = override.Render.Height
	}
	if override.Render.Timezone != "" {
		base.Render.Timezone = override.Render.Timezone
	}
	if override.Render.ChromePath != "" {
		base.Render.ChromePath = override.Render.ChromePath
	}
	if override.Render.Timeout > 0 {
		base.Render.Timeout = override.Render.Timeout
	}

	base.Video = mergeVideo(base.Video, override.Video)
	base.YouTube = mergeYouTube(base.YouTube, override.YouTube)

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.BaseURL != "" {
		base.Notifications.Telegram.BaseURL = override.Notifications.Telegram.BaseURL
	}

	if override.Status.Listen != "" {
		base.Status.Listen = override.Status.Listen
	}

	return base
}

func mergeNews(base, override NewsConfig) NewsConfig {
	if override.Provider != "" {
		base.Provider = override.Provider
	}
	if override.Region != "" {
		base.Region = override.Region
	}
	if override.Language != "" {
		base.Language = override.Language
	}
	if override.LookbackHours > 0 {
		base.LookbackHours = override.LookbackHours
	}
	if override.MaxArticlesPerQuery > 0 {
		base.MaxArticlesPerQuery = override.MaxArticlesPerQuery
	}
	if len(override.Categories) > 0 {
		base.Categories = override.Categories
	}
	if override.GNews.BaseURL != "" {
		base.GNews.BaseURL = override.GNews.BaseURL
	}
	if override.GNews.APIKey != "" {
		base.GNews.APIKey = override.GNews.APIKey
	}
	if override.NewsAPI.BaseURL != "" {
		base.NewsAPI.BaseURL = override.NewsAPI.BaseURL
	}
	if override.NewsAPI.APIKey != "" {
		base.NewsAPI.APIKey = override.NewsAPI.APIKey
	}
	return base
}

func mergePipeline(base, override PipelineConfig) PipelineConfig {
	if override.TargetNewItems > 0 {
		base.TargetNewItems = override.TargetNewItems
	}
	if override.MaxProviderCalls > 0 {
		base.MaxProviderCalls = override.MaxProviderCalls
	}
	if override.Workers > 0 {
		base.Workers = override.Workers
	}
	if override.PublishAttempts > 0 {
		base.PublishAttempts = override.PublishAttempts
	}
	if override.RetryBaseDelay > 0 {
		base.RetryBaseDelay = override.RetryBaseDelay
	}
	if override.RunTimeout > 0 {
		base.RunTimeout = override.RunTimeout
	}
	if override.RetentionDays > 0 {
		base.RetentionDays = override.RetentionDays
	}
	return base
}

func mergeVideo(base, override VideoConfig) VideoConfig {
	if override.FFmpegPath != "" {
		base.FFmpegPath = override.FFmpegPath
	}
	if override.FFprobePath != "" {
		base.FFprobePath = override.FFprobePath
	}
	if override.BaseVideo != "" {
		base.BaseVideo = override.BaseVideo
	}
	if override.Audio != "" {
		base.Audio = override.Audio
	}
	if override.OutputDir != "" {
		base.OutputDir = override.OutputDir
	}
	if override.OverlayHeight > 0 {
		base.OverlayHeight = override.OverlayHeight
	}
	if override.OverlayOffset != 0 {
		base.OverlayOffset = override.OverlayOffset
	}
	if override.OverlayStart > 0 {
		base.OverlayStart = override.OverlayStart
	}
	if override.OverlayEnd > 0 {
		base.OverlayEnd = override.OverlayEnd
	}
	if override.MaxDurationSeconds > 0 {
		base.MaxDurationSeconds = override.MaxDurationSeconds
	}
	if override.FPS > 0 {
		base.FPS = override.FPS
	}
	if override.MusicVolume > 0 {
		base.MusicVolume = override.MusicVolume
	}
	for k, v := range override.Assets {
		if base.Assets == nil {
			base.Assets = map[string]AssetConfig{}
		}
		base.Assets[k] = v
	}
	return base
}

func mergeYouTube(base, override YouTubeConfig) YouTubeConfig {
	if override.ClientSecretsFile != "" {
		base.ClientSecretsFile = override.ClientSecretsFile
	}
	if override.TokenFile != "" {
		base.TokenFile = override.TokenFile
	}
	if override.Privacy != "" {
		base.Privacy = override.Privacy
	}
	if override.MaxTags > 0 {
		base.MaxTags = override.MaxTags
	}
	if override.DefaultCategoryID != "" {
		base.DefaultCategoryID = override.DefaultCategoryID
	}
	for k, v := range override.CategoryIDs {
		if base.CategoryIDs == nil {
			base.CategoryIDs = map[string]string{}
		}
		base.CategoryIDs[k] = v
	}
	for k, v := range override.Playlists {
		if base.Playlists == nil {
			base.Playlists = map[string]string{}
		}
		base.Playlists[k] = v
	}
	if override.Endpoint != "" {
		base.Endpoint = override.Endpoint
	}
	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/history.db"},
		News: NewsConfig{
			Provider:            "gnews",
			Region:              "in",
			Language:            "en",
			LookbackHours:       2,
			MaxArticlesPerQuery: 10,
			Categories: []string{
				"general", "world", "nation", "business", "technology",
				"entertainment", "sports", "science", "health",
			},
			GNews:   ProviderAccount{BaseURL: "https://gnews.io/api/v4"},
			NewsAPI: ProviderAccount{BaseURL: "https://newsapi.org/v2"},
		},
		Trending: TrendingConfig{BaseURL: "https://trends24.in", Count: 5},
		Pipeline: PipelineConfig{
			TargetNewItems:   10,
			MaxProviderCalls: 15,
			Workers:          2,
			PublishAttempts:  3,
			RetryBaseDelay:   2 * time.Second,
			RunTimeout:       45 * time.Minute,
			RetentionDays:    30,
		},
		Render: RenderConfig{Width: 1480, Height: 1200, Timezone: "Asia/Kolkata", Timeout: 30 * time.Second},
		Video: VideoConfig{
			FFmpegPath:         "ffmpeg",
			FFprobePath:        "ffprobe",
			BaseVideo:          "assets/base.mp4",
			OutputDir:          os.TempDir(),
			OverlayHeight:      800,
			OverlayOffset:      300,
			MaxDurationSeconds: 60,
			FPS:                24,
			MusicVolume:        0.15,
		},
		YouTube: YouTubeConfig{
			ClientSecretsFile: "client_secrets.json",
			TokenFile:         "token.json",
			Privacy:           "public",
			MaxTags:           9,
			DefaultCategoryID: "25",
			CategoryIDs: map[string]string{
				"general":       "22",
				"world":         "25",
				"nation":        "25",
				"business":      "26",
				"technology":    "28",
				"entertainment": "24",
				"sports":        "17",
				"science":       "28",
				"health":        "26",
			},
			Playlists: map[string]string{},
		},
		Scheduler: SchedulerConfig{CronExpression: "0 */2 * * *", Timezone: defaultTimezone, location: tz},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
		},
	}
}
