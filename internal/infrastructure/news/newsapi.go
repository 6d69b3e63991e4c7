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

// NewsAPIScanner queries newsapi.org v2: top-headlines for categories and
// everything for keywords.
type NewsAPIScanner struct {
	client  *http.Client
	baseURL string
	key     ports.Credential
}

var _ scanner.Scanner = (*NewsAPIScanner)(nil)

type newsAPIResponse struct {
	Status       string           `json:"status"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
	TotalResults int              `json:"totalResults"`
	Articles     []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
}

var newsAPIQuotaCodes = map[string]struct{}{
	"rateLimited":           {},
	"apiKeyExhausted":       {},
	"maximumResultsReached": {},
}

// NewNewsAPIScanner wires an HTTP client and API key handle.
func NewNewsAPIScanner(client *http.Client, baseURL string, key ports.Credential) *NewsAPIScanner {
	if baseURL == "" {
		baseURL = "https://newsapi.org/v2"
	}
	return &NewsAPIScanner{client: defaultClient(client), baseURL: strings.TrimRight(baseURL, "/"), key: key}
}

// Name identifies the strategy inside the registry.
func (n *NewsAPIScanner) Name() string {
	return "newsapi"
}

// Scan performs one provider call for req.Query.
func (n *NewsAPIScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.NewsItem, error) {
	if n.key == nil {
		return nil, fmt.Errorf("%w: newsapi api key is not configured", domain.ErrSourceUnavailable)
	}
	key, err := n.key.Token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	path := "/top-headlines"
	if req.Query.IsKeyword() {
		path = "/everything"
		params.Set("q", req.Query.Keyword)
		params.Set("sortBy", "publishedAt")
		if req.Language != "" {
			params.Set("language", req.Language)
		}
		if !req.From.IsZero() {
			params.Set("from", req.From.UTC().Format("2006-01-02T15:04:05"))
		}
	} else {
		params.Set("category", string(req.Query.Category))
		if req.Region != "" {
			params.Set("country", req.Region)
		}
	}
	if req.Max > 0 {
		params.Set("pageSize", strconv.Itoa(req.Max))
	}
	params.Set("apiKey", key)

	var payload newsAPIResponse
	if err := getJSON(ctx, n.client, n.baseURL+path+"?"+params.Encode(), &payload, n.classify); err != nil {
		return nil, err
	}
	if payload.Status == "error" {
		return nil, n.classifyCode(payload.Code, payload.Message)
	}

	items := make([]domain.NewsItem, 0, len(payload.Articles))
	for _, art := range payload.Articles {
		item, ok := newItem(req.Query, art.Title, art.Description, art.URL, art.URLToImage, art.PublishedAt, art.Source.Name)
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func (n *NewsAPIScanner) classify(status int, body []byte) error {
	var payload newsAPIResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Code != "" {
		return n.classifyCode(payload.Code, payload.Message)
	}
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: newsapi status %d", domain.ErrQuotaExceeded, status)
	}
	return fmt.Errorf("%w: newsapi status %d: %s", domain.ErrSourceUnavailable, status, snippet(body))
}

func (n *NewsAPIScanner) classifyCode(code, message string) error {
	if _, quota := newsAPIQuotaCodes[code]; quota {
		return fmt.Errorf("%w: newsapi %s: %s", domain.ErrQuotaExceeded, code, message)
	}
	if strings.HasPrefix(code, "apiKey") && n.key != nil {
		n.key.Invalidate()
	}
	return fmt.Errorf("%w: newsapi %s: %s", domain.ErrSourceUnavailable, code, message)
}
