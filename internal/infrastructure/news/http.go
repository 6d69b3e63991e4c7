package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/ports"
)

const maxBodyBytes = 4 << 20

// StaticKey is a provider API key that never refreshes.
type StaticKey string

var _ ports.Credential = StaticKey("")

// Token returns the key or an error when it is empty.
func (k StaticKey) Token(context.Context) (string, error) {
	if k == "" {
		return "", fmt.Errorf("%w: api key is not configured", domain.ErrSourceUnavailable)
	}
	return string(k), nil
}

// Invalidate is a no-op; static keys are rotated out of band.
func (StaticKey) Invalidate() {}

func defaultClient(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return client
}

// getJSON performs a GET and decodes a 200 body into out. Non-200 responses are
// handed to classify together with the raw body.
func getJSON(ctx context.Context, client *http.Client, endpoint string, out any, classify func(status int, body []byte) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrSourceUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return classify(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrSourceUnavailable, err)
	}
	return nil
}

// newItem normalizes provider fields into a NewsItem. Items without a usable
// title are rejected.
func newItem(q domain.Query, title, description, link, image, published, sourceName string) (domain.NewsItem, bool) {
	title = strings.TrimSpace(title)
	if title == "" || title == "[Removed]" {
		return domain.NewsItem{}, false
	}
	sourceName = strings.TrimSpace(sourceName)
	link = strings.TrimSpace(link)

	var publishedAt time.Time
	if published != "" {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(published)); err == nil {
			publishedAt = t.UTC()
		}
	}

	return domain.NewsItem{
		ID:          domain.ItemID(link, title, sourceName),
		Title:       title,
		Description: strings.TrimSpace(description),
		SourceURL:   link,
		SourceName:  sourceName,
		PublishedAt: publishedAt,
		Category:    q.Category,
		Keyword:     q.Keyword,
		ImageURL:    strings.TrimSpace(image),
	}, true
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
