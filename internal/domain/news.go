package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category enumerates the provider news sections.
type Category string

const (
	CategoryGeneral       Category = "general"
	CategoryWorld         Category = "world"
	CategoryNation        Category = "nation"
	CategoryBusiness      Category = "business"
	CategoryTechnology    Category = "technology"
	CategoryEntertainment Category = "entertainment"
	CategorySports        Category = "sports"
	CategoryScience       Category = "science"
	CategoryHealth        Category = "health"
)

// Categories lists every section in the default processing order.
var Categories = []Category{
	CategoryGeneral,
	CategoryWorld,
	CategoryNation,
	CategoryBusiness,
	CategoryTechnology,
	CategoryEntertainment,
	CategorySports,
	CategoryScience,
	CategoryHealth,
}

// ParseCategory validates a configured category name.
func ParseCategory(value string) (Category, error) {
	normalized := Category(strings.ToLower(strings.TrimSpace(value)))
	for _, c := range Categories {
		if c == normalized {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", value)
}

// NewsItem is a single candidate story. Values are immutable once fetched.
type NewsItem struct {
	ID          string
	Title       string
	Description string
	SourceURL   string
	SourceName  string
	PublishedAt time.Time
	Category    Category
	Keyword     string
	ImageURL    string
}

// Query is one provider call: either a category section or a keyword search.
type Query struct {
	Category Category
	Keyword  string
}

// IsKeyword reports whether the query is a keyword search.
func (q Query) IsKeyword() bool {
	return q.Keyword != ""
}

func (q Query) String() string {
	if q.IsKeyword() {
		return "keyword:" + q.Keyword
	}
	return "category:" + string(q.Category)
}

// FetchRequest parameterizes a NewsSource sequence. Limit bounds provider calls.
type FetchRequest struct {
	Queries []Query
	Region  string
	Limit   int
}
