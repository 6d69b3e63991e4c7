package trends

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/ports"
)

const (
	defaultBaseURL   = "https://trends24.in"
	userAgent        = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	primarySelector  = "ol.trend-card__list li span.trend-name a.trend-link"
	fallbackSelector = "a.trend-link"
)

var plainTag = regexp.MustCompile(`^[\w\s#]+$`)

// regionSlugs maps country codes to trends24 location paths.
var regionSlugs = map[string]string{
	"in": "india",
	"us": "united-states",
	"gb": "united-kingdom",
	"ca": "canada",
	"au": "australia",
	"pk": "pakistan",
	"ng": "nigeria",
	"za": "south-africa",
	"ae": "united-arab-emirates",
	"sg": "singapore",
}

// Trends24 scrapes the first (most recent) trend card of a region page.
type Trends24 struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ ports.TrendingSource = (*Trends24)(nil)

// NewTrends24 builds a scraper. A nil client gets a 15s timeout.
func NewTrends24(baseURL string, client *http.Client, logger *slog.Logger) *Trends24 {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Trends24{baseURL: strings.TrimRight(baseURL, "/"), client: client, logger: logger}
}

// FetchKeywords returns up to count hashtags for region ordered by rank.
func (t *Trends24) FetchKeywords(ctx context.Context, region string, count int) ([]string, error) {
	pageURL, err := t.pageURL(region)
	if err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.StdlibContext(ctx),
	)
	c.SetClient(t.client)

	var tags []string
	var scrapeErr error
	c.OnHTML("html", func(e *colly.HTMLElement) {
		tags = ParseTrends(e.DOM, count)
	})
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(pageURL); err != nil && scrapeErr == nil {
		scrapeErr = err
	}
	if scrapeErr != nil {
		return nil, fmt.Errorf("%w: trends24 %s: %v", domain.ErrSourceUnavailable, pageURL, scrapeErr)
	}

	if t.logger != nil {
		t.logger.Debug("trending hashtags fetched", "region", region, "count", len(tags))
	}
	return tags, nil
}

func (t *Trends24) pageURL(region string) (string, error) {
	region = strings.ToLower(strings.TrimSpace(region))
	slug, ok := regionSlugs[region]
	if !ok {
		return "", fmt.Errorf("%w: no trends24 location for region %q", domain.ErrSourceUnavailable, region)
	}
	u, err := url.JoinPath(t.baseURL, slug)
	if err != nil {
		return "", fmt.Errorf("build trends url: %w", err)
	}
	return u + "/", nil
}

// ParseTrends extracts hashtag trends from the first trend list, dropping
// non-hashtag trends and tags with punctuation, deduplicated in rank order.
func ParseTrends(doc *goquery.Selection, count int) []string {
	links := doc.Find("ol.trend-card__list").First().Find("li span.trend-name a.trend-link")
	if links.Length() == 0 {
		links = doc.Find(primarySelector)
	}
	if links.Length() == 0 {
		links = doc.Find(fallbackSelector)
	}

	seen := map[string]struct{}{}
	var tags []string
	links.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(text, "#") || !plainTag.MatchString(text) {
			return true
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		tags = append(tags, text)
		return count <= 0 || len(tags) < count
	})
	return tags
}
