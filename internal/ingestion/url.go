// Package ingestion turns job links and candidate documents into clean text.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clintjohnsn/pytchdeck/internal/fetch"
	"github.com/clintjohnsn/pytchdeck/internal/types"
)

var (
	// ErrHTTPRequestFailed is returned when the job page could not be reached at all
	ErrHTTPRequestFailed = errors.New("HTTP request failed")
	// ErrContentExtractionFailed is returned when the page HTML could not be parsed
	ErrContentExtractionFailed = errors.New("content extraction failed")
)

// Acquisition is the cleaned text of a job page plus what was learned while fetching it.
type Acquisition struct {
	Text     string
	Metadata *Metadata
}

// Acquirer fetches job description text from http and https links.
type Acquirer struct {
	opts       *fetch.Options
	renderer   fetch.Renderer
	useBrowser bool
	logger     *zap.Logger
}

// AcquirerOption configures an Acquirer.
type AcquirerOption func(*Acquirer)

// WithFetchOptions overrides the HTTP options.
func WithFetchOptions(opts *fetch.Options) AcquirerOption {
	return func(a *Acquirer) { a.opts = opts }
}

// WithBrowserFallback renders short or client-side pages through r.
func WithBrowserFallback(r fetch.Renderer) AcquirerOption {
	return func(a *Acquirer) {
		a.renderer = r
		a.useBrowser = r != nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) AcquirerOption {
	return func(a *Acquirer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAcquirer returns an Acquirer using plain HTTP unless a browser fallback is configured.
func NewAcquirer(opts ...AcquirerOption) *Acquirer {
	a := &Acquirer{opts: fetch.DefaultOptions(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewAcquirerWithTimeout is a convenience for the common configuration.
func NewAcquirerWithTimeout(timeout time.Duration, useBrowser bool, logger *zap.Logger) *Acquirer {
	fo := fetch.DefaultOptions()
	if timeout > 0 {
		fo.Timeout = timeout
	}
	opts := []AcquirerOption{WithFetchOptions(fo), WithLogger(logger)}
	if useBrowser {
		opts = append(opts, WithBrowserFallback(fetch.NewBrowserRenderer(timeout, logger)))
	}
	return NewAcquirer(opts...)
}

// CheckScheme rejects links that are not absolute http or https URLs.
func CheckScheme(link string) error {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return &types.InvalidUrlSchemeError{URL: link}
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return &types.InvalidUrlSchemeError{URL: link, Scheme: parsed.Scheme}
	}
	return nil
}

// Acquire returns the cleaned job description text behind link.
// Pages that answer with a non-2xx status or yield no text fail with *types.NoContentError.
func (a *Acquirer) Acquire(ctx context.Context, link string) (string, error) {
	res, err := a.Fetch(ctx, link)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Fetch is Acquire with metadata.
func (a *Acquirer) Fetch(ctx context.Context, link string) (*Acquisition, error) {
	if err := CheckScheme(link); err != nil {
		return nil, err
	}

	platform := fetch.DetectPlatform(link)
	log := a.logger.With(zap.String("url", link), zap.String("platform", string(platform)))

	result, err := fetch.URL(ctx, link, a.opts)
	if err != nil {
		var fe *fetch.Error
		if errors.As(err, &fe) && fe.StatusCode != 0 {
			log.Info("job page returned no content", zap.Int("status", fe.StatusCode))
			return nil, &types.NoContentError{URL: link}
		}
		return nil, fmt.Errorf("%w: %w", ErrHTTPRequestFailed, err)
	}
	log.Debug("fetched job page", zap.Int("bytes", len(result.HTML)))

	contentSelectors := fetch.PlatformContentSelectors(platform)
	noiseSelectors := fetch.PlatformNoiseSelectors(platform)

	var text string
	if result.IsPlainText() {
		text = result.HTML
	} else {
		text, err = fetch.ExtractMainText(result.HTML, contentSelectors, noiseSelectors...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrContentExtractionFailed, err)
		}
	}

	if a.useBrowser && (platform.RequiresBrowser() || fetch.ShouldUseBrowser(text)) {
		log.Debug("falling back to browser rendering", zap.Int("chars", len(text)))
		html, berr := a.renderer.Render(ctx, link)
		switch {
		case berr != nil:
			log.Warn("browser rendering failed, using HTTP content", zap.Error(berr))
		default:
			rendered, xerr := fetch.ExtractMainText(html, contentSelectors, noiseSelectors...)
			if xerr != nil {
				log.Warn("browser content extraction failed", zap.Error(xerr))
			} else if len(rendered) > len(text) {
				text = rendered
			}
		}
	}

	cleaned := CleanText(text)
	if cleaned == "" {
		return nil, &types.NoContentError{URL: link}
	}

	meta := NewMetadata(cleaned, link)
	meta.Platform = string(platform)
	meta.Title = fetch.Title(result.HTML)
	log.Info("acquired job description", zap.Int("chars", len(cleaned)), zap.String("hash", meta.Hash[:12]))

	return &Acquisition{Text: cleaned, Metadata: meta}, nil
}
