package domain

import (
	"fmt"
	"strings"
)

// ModeKind selects how queries for a run are produced.
type ModeKind int

const (
	ModeCategories ModeKind = iota
	ModeKeywords
)

func (k ModeKind) String() string {
	switch k {
	case ModeCategories:
		return "categories"
	case ModeKeywords:
		return "keywords"
	default:
		return fmt.Sprintf("mode(%d)", int(k))
	}
}

// Mode is the run variant: Categories(region) or Keywords(region).
type Mode struct {
	Kind   ModeKind
	Region string
}

// CategoriesMode builds a category-driven mode.
func CategoriesMode(region string) Mode {
	return Mode{Kind: ModeCategories, Region: normalizeRegion(region)}
}

// KeywordsMode builds a trending-keyword-driven mode.
func KeywordsMode(region string) Mode {
	return Mode{Kind: ModeKeywords, Region: normalizeRegion(region)}
}

func (m Mode) String() string {
	return m.Kind.String() + "(" + m.Region + ")"
}

// ParseModes resolves a CLI selector into the modes to run in order.
// "all" (or empty) runs categories then keywords.
func ParseModes(selector, region string) ([]Mode, error) {
	if err := ValidateRegion(region); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(selector)) {
	case "", "all":
		return []Mode{CategoriesMode(region), KeywordsMode(region)}, nil
	case "categories", "category":
		return []Mode{CategoriesMode(region)}, nil
	case "keywords", "keyword", "trending":
		return []Mode{KeywordsMode(region)}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q (want all, categories or keywords)", selector)
	}
}

// ValidateRegion accepts two-letter country codes.
func ValidateRegion(region string) error {
	r := normalizeRegion(region)
	if len(r) != 2 || r[0] < 'a' || r[0] > 'z' || r[1] < 'a' || r[1] > 'z' {
		return fmt.Errorf("region %q must be a two-letter country code", region)
	}
	return nil
}

func normalizeRegion(region string) string {
	return strings.ToLower(strings.TrimSpace(region))
}
