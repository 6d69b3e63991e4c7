package metadata

import (
	"sort"
	"strings"
	"unicode"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/ports"
)

const (
	maxTitleRunes    = 100
	defaultMaxTags   = 9
	frequencyTagSize = 3
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {}, "all": {},
	"any": {}, "can": {}, "had": {}, "her": {}, "was": {}, "one": {}, "our": {}, "out": {},
	"has": {}, "have": {}, "his": {}, "how": {}, "its": {}, "new": {}, "now": {}, "old": {},
	"see": {}, "two": {}, "who": {}, "did": {}, "get": {}, "may": {}, "him": {}, "she": {},
	"they": {}, "this": {}, "that": {}, "with": {}, "from": {}, "will": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "their": {}, "there": {}, "been": {}, "were": {},
	"into": {}, "than": {}, "then": {}, "them": {}, "these": {}, "those": {}, "over": {},
	"after": {}, "about": {}, "said": {}, "says": {}, "more": {}, "also": {}, "just": {},
	"amid": {}, "news": {}, "latest": {}, "today": {}, "report": {}, "reports": {},
}

// Options configure metadata derivation.
type Options struct {
	MaxTags           int
	TitlePrefix       string
	Privacy           string
	DefaultCategoryID string
	CategoryIDs       map[string]string
	Playlists         map[string]string
	CategoryTags      map[domain.Category][]string
	DefaultTags       []string
}

// Builder derives upload metadata from news items.
type Builder struct {
	opts Options
}

var _ ports.MetadataBuilder = (*Builder)(nil)

// DefaultCategoryTags maps sections to evergreen tags.
var DefaultCategoryTags = map[domain.Category][]string{
	domain.CategoryGeneral:       {"BreakingNews", "TopStories"},
	domain.CategoryWorld:         {"WorldNews", "GlobalNews"},
	domain.CategoryNation:        {"NationalNews", "IndiaNews"},
	domain.CategoryBusiness:      {"BusinessNews", "Markets"},
	domain.CategoryTechnology:    {"TechNews", "Technology"},
	domain.CategoryEntertainment: {"Entertainment", "Bollywood"},
	domain.CategorySports:        {"SportsNews", "Cricket"},
	domain.CategoryScience:       {"ScienceNews", "Science"},
	domain.CategoryHealth:        {"HealthNews", "Health"},
}

// NewBuilder fills option defaults.
func NewBuilder(opts Options) *Builder {
	if opts.MaxTags <= 0 {
		opts.MaxTags = defaultMaxTags
	}
	if opts.TitlePrefix == "" {
		opts.TitlePrefix = "Breaking News: "
	}
	if opts.Privacy == "" {
		opts.Privacy = "public"
	}
	if opts.CategoryTags == nil {
		opts.CategoryTags = DefaultCategoryTags
	}
	if len(opts.DefaultTags) == 0 {
		opts.DefaultTags = []string{"TrendingNow", "CurrentAffairs"}
	}
	return &Builder{opts: opts}
}

// Build returns title, description, tags and platform settings for item.
func (b *Builder) Build(item domain.NewsItem) domain.VideoMetadata {
	tags := b.Tags(item)

	primary := ""
	if item.Keyword != "" {
		primary = Hashtag(item.Keyword)
	} else if len(tags) > 0 {
		primary = "#" + tags[0]
	}

	return domain.VideoMetadata{
		Title:       b.title(item.Title, primary),
		Description: b.description(item, tags),
		Tags:        tags,
		CategoryID:  b.categoryID(item.Category),
		PlaylistID:  b.opts.Playlists[string(item.Category)],
		Privacy:     b.opts.Privacy,
	}
}

// Tags lists keyword, frequent-word and category tags, deduplicated
// case-insensitively and capped at MaxTags.
func (b *Builder) Tags(item domain.NewsItem) []string {
	var candidates []string
	if item.Keyword != "" {
		if tag := strings.TrimPrefix(Hashtag(item.Keyword), "#"); tag != "" {
			candidates = append(candidates, tag)
		}
	}
	candidates = append(candidates, frequencyTags(item.Title+" "+item.Description+" "+item.SourceName, frequencyTagSize)...)
	if item.Category != "" {
		candidates = append(candidates, b.opts.CategoryTags[item.Category]...)
	} else {
		candidates = append(candidates, b.opts.DefaultTags...)
		candidates = append(candidates, strings.Fields(item.Keyword)...)
	}

	seen := map[string]struct{}{}
	tags := make([]string, 0, b.opts.MaxTags)
	for _, tag := range candidates {
		tag = strings.TrimSpace(strings.TrimPrefix(tag, "#"))
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == b.opts.MaxTags {
			break
		}
	}
	return tags
}

func (b *Builder) title(headline, tag string) string {
	suffix := ""
	if tag != "" {
		suffix = " " + tag
	}
	budget := maxTitleRunes - runeLen(b.opts.TitlePrefix) - runeLen(suffix)
	if budget < 10 {
		suffix = ""
		budget = maxTitleRunes - runeLen(b.opts.TitlePrefix)
	}
	return b.opts.TitlePrefix + truncateWords(strings.TrimSpace(headline), budget) + suffix
}

func (b *Builder) description(item domain.NewsItem, tags []string) string {
	var lines []string
	if item.Description != "" {
		lines = append(lines, item.Description, "")
	}
	if item.SourceName != "" {
		lines = append(lines, "Source: "+item.SourceName)
	}
	if item.SourceURL != "" {
		lines = append(lines, "Read more: "+item.SourceURL)
	}

	hashtags := make([]string, 0, len(tags)+2)
	for _, tag := range tags {
		hashtags = append(hashtags, "#"+tag)
	}
	hashtags = append(hashtags, "#shorts")
	if src := Hashtag(item.SourceName); src != "" {
		hashtags = append(hashtags, src)
	}
	lines = append(lines, "", strings.Join(hashtags, " "))
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (b *Builder) categoryID(c domain.Category) string {
	if id, ok := b.opts.CategoryIDs[string(c)]; ok && id != "" {
		return id
	}
	if b.opts.DefaultCategoryID != "" {
		return b.opts.DefaultCategoryID
	}
	return "25"
}

// frequencyTags returns the n most frequent non-stop words of three or more
// letters, capitalized. Ties resolve alphabetically.
func frequencyTags(text string, n int) []string {
	counts := map[string]int{}
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if len([]rune(word)) < 3 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		counts[word]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return words
}

func truncateWords(s string, limit int) string {
	if runeLen(s) <= limit {
		return s
	}
	const ellipsis = "..."
	runes := []rune(s)
	cut := string(runes[:limit-len(ellipsis)])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:-") + ellipsis
}

func runeLen(s string) int {
	return len([]rune(s))
}
