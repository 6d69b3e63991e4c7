package render

import (
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"html/template"
	"image/png"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/ports"
)

//go:embed templates/card.html
var defaultCardMarkup string

const publishedLayout = "02 Jan 2006, 03:04 PM MST"

// DefaultTemplate is the built-in card markup.
var DefaultTemplate = domain.CardTemplate{Name: "default", Source: defaultCardMarkup}

// Surface hands out a capture handle scoped to one render. release must be
// called exactly once, whatever the outcome of the capture.
type Surface interface {
	Acquire(ctx context.Context) (capture Capturer, release func(), err error)
}

// Capturer rasterizes markup into PNG bytes.
type Capturer interface {
	Capture(ctx context.Context, markup string, width, height int) ([]byte, error)
}

// Options configure card geometry and date rendering.
type Options struct {
	Width    int
	Height   int
	Location *time.Location
}

// Renderer implements CardRenderer with html/template markup and an offscreen surface.
type Renderer struct {
	surface Surface
	opts    Options
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]*template.Template
}

var _ ports.CardRenderer = (*Renderer)(nil)

type cardData struct {
	Width       int
	Height      int
	Title       string
	Description string
	Source      string
	Published   string
	ImageURL    string
	Label       string
}

// NewRenderer wires a surface with card options.
func NewRenderer(surface Surface, opts Options, logger *slog.Logger) *Renderer {
	if opts.Width <= 0 {
		opts.Width = 1480
	}
	if opts.Height <= 0 {
		opts.Height = 1200
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Renderer{surface: surface, opts: opts, logger: logger, cache: map[string]*template.Template{}}
}

// Render draws item with tmpl. Every failure is a domain.ErrRenderFailure.
func (r *Renderer) Render(ctx context.Context, item domain.NewsItem, tmpl domain.CardTemplate) (domain.RenderedCard, error) {
	markup, err := r.Markup(item, tmpl)
	if err != nil {
		return domain.RenderedCard{}, err
	}
	if r.surface == nil {
		return domain.RenderedCard{}, fmt.Errorf("%w: no render surface configured", domain.ErrRenderFailure)
	}

	capture, release, err := r.surface.Acquire(ctx)
	if err != nil {
		return domain.RenderedCard{}, fmt.Errorf("%w: acquire surface: %v", domain.ErrRenderFailure, err)
	}
	defer release()

	img, err := capture.Capture(ctx, markup, r.opts.Width, r.opts.Height)
	if err != nil {
		return domain.RenderedCard{}, fmt.Errorf("%w: capture %s: %v", domain.ErrRenderFailure, item.ID, err)
	}
	if len(img) == 0 {
		return domain.RenderedCard{}, fmt.Errorf("%w: empty capture for %s", domain.ErrRenderFailure, item.ID)
	}

	card := domain.RenderedCard{ItemID: item.ID, Image: img, Width: r.opts.Width, Height: r.opts.Height}
	if cfg, err := png.DecodeConfig(bytes.NewReader(img)); err == nil {
		card.Width, card.Height = cfg.Width, cfg.Height
	}
	if r.logger != nil {
		r.logger.Debug("card rendered", "item_id", item.ID, "bytes", len(img), "width", card.Width, "height", card.Height)
	}
	return card, nil
}

// Markup executes tmpl for item. Output depends only on item, tmpl and options.
func (r *Renderer) Markup(item domain.NewsItem, tmpl domain.CardTemplate) (string, error) {
	t, err := r.template(tmpl)
	if err != nil {
		return "", err
	}

	data := cardData{
		Width:       r.opts.Width,
		Height:      r.opts.Height,
		Title:       item.Title,
		Description: item.Description,
		Source:      item.SourceName,
		ImageURL:    item.ImageURL,
		Label:       label(item),
	}
	if !item.PublishedAt.IsZero() {
		data.Published = item.PublishedAt.In(r.opts.Location).Format(publishedLayout)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: execute template %s: %v", domain.ErrRenderFailure, tmpl.Name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) template(tmpl domain.CardTemplate) (*template.Template, error) {
	key := tmpl.Name + "|" + tmpl.Path
	if tmpl.Source != "" {
		sum := sha256.Sum256([]byte(tmpl.Source))
		key += "|inline:" + hex.EncodeToString(sum[:])
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.cache[key]; ok {
		return t, nil
	}

	source := tmpl.Source
	if source == "" {
		if tmpl.Path == "" {
			return nil, fmt.Errorf("%w: template %q has no markup", domain.ErrRenderFailure, tmpl.Name)
		}
		raw, err := os.ReadFile(tmpl.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: template asset %s: %v", domain.ErrRenderFailure, tmpl.Path, err)
		}
		source = string(raw)
	}

	t, err := template.New(tmpl.Name).Option("missingkey=error").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("%w: parse template %s: %v", domain.ErrRenderFailure, tmpl.Name, err)
	}
	r.cache[key] = t
	return t, nil
}

func label(item domain.NewsItem) string {
	if item.Keyword != "" {
		return "Trending: " + item.Keyword
	}
	if item.Category != "" {
		return strings.ToUpper(string(item.Category[:1])) + string(item.Category[1:])
	}
	return ""
}
