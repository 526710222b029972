package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// MinContentLength is the extracted text length below which a page is treated as
// client-rendered and retried through the headless browser.
const MinContentLength = 500

// ShouldUseBrowser reports whether extracted text is too short to be a full posting.
func ShouldUseBrowser(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinContentLength
}

// Renderer returns the fully rendered HTML of a page.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, url string) (string, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

// BrowserRenderer renders pages in headless Chrome. Chrome or Chromium must be installed.
type BrowserRenderer struct {
	Timeout time.Duration
	// Settle is how long to wait after body is ready for scripts to populate the page.
	Settle time.Duration
	Logger *zap.Logger
}

// NewBrowserRenderer returns a renderer with the given timeout.
func NewBrowserRenderer(timeout time.Duration, logger *zap.Logger) *BrowserRenderer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserRenderer{Timeout: timeout, Settle: 3 * time.Second, Logger: logger}
}

// Render navigates to url and returns the outer HTML of the document.
func (b *BrowserRenderer) Render(ctx context.Context, url string) (string, error) {
	b.Logger.Debug("starting headless browser", zap.String("url", url))

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, b.Timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(b.Settle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// cookie banners hide the posting on some boards; missing buttons are fine
			_ = chromedp.Click(`button[id*="accept"], button[class*="accept"]`, chromedp.NodeVisible, chromedp.AtLeast(0)).Do(ctx)
			return nil
		}),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	b.Logger.Debug("rendered page", zap.String("url", url), zap.Int("bytes", len(html)))
	return html, nil
}
