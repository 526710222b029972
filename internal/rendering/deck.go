package rendering

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/clintjohnsn/pytchdeck/internal/llm"
	"github.com/clintjohnsn/pytchdeck/internal/logger"
	"github.com/clintjohnsn/pytchdeck/internal/prompts"
	"github.com/clintjohnsn/pytchdeck/internal/types"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

// DefaultRevealBase is where reveal.js assets are loaded from.
const DefaultRevealBase = "https://cdn.jsdelivr.net/npm/reveal.js@5.1.0"

// TemplateData is passed to the deck template
type TemplateData struct {
	Title      string
	Theme      string
	RevealBase string
	Slides     []Slide
}

// Slide is one rendered section of the deck
type Slide struct {
	Index int
	Title string
	HTML  template.HTML
}

var (
	md = goldmark.New(goldmark.WithExtensions(extension.GFM))

	policy = func() *bluemonday.Policy {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "span", "div")
		return p
	}()

	deckOnce sync.Once
	deckTmpl *template.Template
	deckErr  error
)

func parseTemplate() (*template.Template, error) {
	deckOnce.Do(func() {
		deckTmpl, deckErr = template.ParseFS(templateFiles, "templates/deck.html.tmpl")
		if deckErr != nil {
			deckErr = &TemplateError{Message: "failed to parse deck template", Cause: deckErr}
		}
	})
	return deckTmpl, deckErr
}

// RenderSlide converts slide markdown to sanitized HTML.
func RenderSlide(markdown string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", &RenderError{Message: "failed to convert slide markdown", Cause: err}
	}
	// policy output is sanitized; the conversion to template.HTML is safe
	return template.HTML(policy.SanitizeBytes(buf.Bytes())), nil //nolint:gosec
}

// RenderOptions tweak the deck shell.
type RenderOptions struct {
	Theme      string
	RevealBase string
}

// RenderDeck builds a complete HTML document from deck markdown.
func RenderDeck(title, markdown string, opts RenderOptions) (string, error) {
	parts := SplitSlides(markdown)
	if len(parts) == 0 {
		return "", &RenderError{Message: "no slides to render"}
	}

	data := TemplateData{
		Title:      title,
		Theme:      opts.Theme,
		RevealBase: opts.RevealBase,
		Slides:     make([]Slide, 0, len(parts)),
	}
	if data.Title == "" {
		data.Title = types.DefaultDeckTitle
	}
	if data.Theme == "" {
		data.Theme = "white"
	}
	if data.RevealBase == "" {
		data.RevealBase = DefaultRevealBase
	}

	for i, part := range parts {
		html, err := RenderSlide(part)
		if err != nil {
			return "", err
		}
		data.Slides = append(data.Slides, Slide{Index: i + 1, Title: SlideTitle(part), HTML: html})
	}

	tmpl, err := parseTemplate()
	if err != nil {
		return "", err
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", &TemplateError{Message: "failed to execute deck template", Cause: err}
	}
	return out.String(), nil
}

// DeckGenerator asks the advanced tier for slide markdown and renders it.
type DeckGenerator struct {
	client  llm.Client
	title   string
	options RenderOptions
	logger  *zap.Logger
}

// NewDeckGenerator returns a generator producing decks titled types.DefaultDeckTitle.
func NewDeckGenerator(client llm.Client, log *zap.Logger) *DeckGenerator {
	return &DeckGenerator{client: client, title: types.DefaultDeckTitle, logger: logger.OrNop(log)}
}

// WithTheme sets the reveal.js theme name.
func (g *DeckGenerator) WithTheme(theme string) *DeckGenerator {
	g.options.Theme = theme
	return g
}

// Generate returns a standalone HTML deck built from content.
func (g *DeckGenerator) Generate(ctx context.Context, content string) (string, error) {
	system, err := prompts.Get("pitch.json", "generate-deck-system")
	if err != nil {
		return "", err
	}
	user, err := prompts.Render("pitch.json", "generate-deck-user", map[string]string{"Content": content})
	if err != nil {
		return "", err
	}

	markdown, err := g.client.GenerateContent(ctx, user, llm.TierAdvanced, llm.WithSystem(system), llm.WithTemperature(0.4))
	if err != nil {
		return "", fmt.Errorf("failed to generate deck: %w", err)
	}

	html, err := RenderDeck(g.title, markdown, g.options)
	if err != nil {
		g.logger.Warn("deck rendering failed",
			zap.String(logger.FieldModel, g.client.GetModel(llm.TierAdvanced)),
			zap.String("response", logger.TruncateForLog(markdown, 200)),
			zap.Error(err),
		)
		return "", err
	}

	g.logger.Debug("rendered deck", zap.Int("slides", len(SplitSlides(markdown))), zap.Int("bytes", len(html)))
	return html, nil
}
