package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/ports"
	"NewsShorts/internal/scanner"
)

// GNewsScanner queries the gnews.io v4 API: top-headlines for categories and
// search for keywords.
type GNewsScanner struct {
	client  *http.Client
	baseURL string
	key     ports.Credential
}

var _ scanner.Scanner = (*GNewsScanner)(nil)

type gnewsResponse struct {
	TotalArticles int            `json:"totalArticles"`
	Articles      []gnewsArticle `json:"articles"`
}

type gnewsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

// NewGNewsScanner wires an HTTP client and API key handle.
func NewGNewsScanner(client *http.Client, baseURL string, key ports.Credential) *GNewsScanner {
	if baseURL == "" {
		baseURL = "https://gnews.io/api/v4"
	}
	return &GNewsScanner{client: defaultClient(client), baseURL: strings.TrimRight(baseURL, "/"), key: key}
}

// Name identifies the strategy inside the registry.
func (g *GNewsScanner) Name() string {
	return "gnews"
}

// Scan performs one provider call for req.Query.
func (g *GNewsScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.NewsItem, error) {
	endpoint, err := g.buildURL(ctx, req)
	if err != nil {
		return nil, err
	}

	var payload gnewsResponse
	if err := getJSON(ctx, g.client, endpoint, &payload, g.classify); err != nil {
		return nil, err
	}

	items := make([]domain.NewsItem, 0, len(payload.Articles))
	for _, art := range payload.Articles {
		item, ok := newItem(req.Query, art.Title, art.Description, art.URL, art.Image, art.PublishedAt, art.Source.Name)
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func (g *GNewsScanner) buildURL(ctx context.Context, req scanner.Request) (string, error) {
	key, err := g.token(ctx)
	if err != nil {
		return "", err
	}

	path := "/top-headlines"
	params := url.Values{}
	if req.Query.IsKeyword() {
		path = "/search"
		params.Set("q", req.Query.Keyword)
		params.Set("sortby", "publishedAt")
	} else {
		params.Set("category", string(req.Query.Category))
	}
	if req.Language != "" {
		params.Set("lang", req.Language)
	}
	if req.Region != "" {
		params.Set("country", req.Region)
	}
	if req.Max > 0 {
		params.Set("max", strconv.Itoa(req.Max))
	}
	if !req.From.IsZero() {
		params.Set("from", req.From.UTC().Format("2006-01-02T15:04:05Z"))
	}
	params.Set("apikey", key)

	return g.baseURL + path + "?" + params.Encode(), nil
}

func (g *GNewsScanner) token(ctx context.Context) (string, error) {
	if g.key == nil {
		return "", fmt.Errorf("%w: gnews api key is not configured", domain.ErrSourceUnavailable)
	}
	return g.key.Token(ctx)
}

// classify maps gnews status codes: 403 is the daily quota, 429 the request rate.
func (g *GNewsScanner) classify(status int, body []byte) error {
	msg := snippet(body)
	var payload struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Errors) > 0 {
		msg = string(payload.Errors)
	}

	switch {
	case status == http.StatusTooManyRequests, status == http.StatusForbidden:
		return fmt.Errorf("%w: gnews status %d: %s", domain.ErrQuotaExceeded, status, msg)
	case status == http.StatusUnauthorized:
		if g.key != nil {
			g.key.Invalidate()
		}
		return fmt.Errorf("%w: gnews rejected api key: %s", domain.ErrSourceUnavailable, msg)
	default:
		return fmt.Errorf("%w: gnews status %d: %s", domain.ErrSourceUnavailable, status, msg)
	}
}
