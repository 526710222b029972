package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clintjohnsn/pytchdeck/internal/fetch"
	"github.com/clintjohnsn/pytchdeck/internal/types"
)

const postingHTML = `<html><head><title>Senior Backend Engineer</title></head><body>
<nav>Home | Careers</nav>
<div class="job-description">
  <h2>About the role</h2>
  <p>We need a Senior Backend Engineer with 5+ years   Go experience.</p>
  <ul><li>Design distributed systems</li><li>Own services end to end</li></ul>
</div>
<footer>Copyright</footer>
</body></html>`

func serve(t *testing.T, status int, contentType, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCheckScheme(t *testing.T) {
	tests := []struct {
		link    string
		wantErr bool
	}{
		{"https://jobs.example.com/1", false},
		{"HTTP://jobs.example.com/1", false},
		{"ftp://jobs.example.com/1", true},
		{"file:///etc/passwd", true},
		{"jobs.example.com/1", true},
		{"javascript:alert(1)", true},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			err := CheckScheme(tt.link)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var schemeErr *types.InvalidUrlSchemeError
			assert.ErrorAs(t, err, &schemeErr)
		})
	}
}

func TestAcquire_Success(t *testing.T) {
	server := serve(t, http.StatusOK, "text/html", postingHTML)

	res, err := NewAcquirer().Fetch(context.Background(), server.URL+"/jobs/1")
	require.NoError(t, err)

	assert.Contains(t, res.Text, "About the role")
	assert.Contains(t, res.Text, "5+ years Go experience")
	assert.Contains(t, res.Text, "Design distributed systems")
	assert.NotContains(t, res.Text, "Careers")
	assert.NotContains(t, res.Text, "Copyright")
	assert.Equal(t, "Senior Backend Engineer", res.Metadata.Title)
	assert.Equal(t, string(fetch.PlatformUnknown), res.Metadata.Platform)
}

func TestAcquire_PlainText(t *testing.T) {
	server := serve(t, http.StatusOK, "text/plain; charset=utf-8", "Staff Engineer\n\n\n\nWrite Go   all day")

	text, err := NewAcquirer().Acquire(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Staff Engineer\n\nWrite Go all day", text)
}

func TestAcquire_InvalidScheme(t *testing.T) {
	_, err := NewAcquirer().Acquire(context.Background(), "ftp://example.com/job")

	var schemeErr *types.InvalidUrlSchemeError
	require.ErrorAs(t, err, &schemeErr)
	assert.Equal(t, "ftp", schemeErr.Scheme)
}

func TestAcquire_EmptyPageIsNoContent(t *testing.T) {
	server := serve(t, http.StatusOK, "text/html", "<html><body><script>render()</script></body></html>")

	_, err := NewAcquirer().Acquire(context.Background(), server.URL)

	var noContent *types.NoContentError
	require.ErrorAs(t, err, &noContent)
	assert.Equal(t, server.URL, noContent.URL)
}

func TestAcquire_HTTPStatusIsNoContent(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		server := serve(t, status, "text/html", "<html><body>gone</body></html>")

		_, err := NewAcquirer().Acquire(context.Background(), server.URL)

		var noContent *types.NoContentError
		assert.ErrorAs(t, err, &noContent, "status %d", status)
	}
}

func TestAcquire_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := server.URL
	server.Close()

	_, err := NewAcquirer().Acquire(context.Background(), addr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHTTPRequestFailed))
}

func TestAcquire_BrowserFallback(t *testing.T) {
	server := serve(t, http.StatusOK, "text/html", `<html><body><div id="root"></div></body></html>`)

	var calls atomic.Int32
	renderer := fetch.RendererFunc(func(_ context.Context, url string) (string, error) {
		calls.Add(1)
		return `<html><body><main><p>` + strings.Repeat("Rendered posting text. ", 30) + `</p></main></body></html>`, nil
	})

	text, err := NewAcquirer(WithBrowserFallback(renderer)).Acquire(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, text, "Rendered posting text.")
}

func TestAcquire_BrowserFailureKeepsHTTPContent(t *testing.T) {
	server := serve(t, http.StatusOK, "text/html", postingHTML)

	renderer := fetch.RendererFunc(func(context.Context, string) (string, error) {
		return "", errors.New("chrome not installed")
	})

	text, err := NewAcquirer(WithBrowserFallback(renderer)).Acquire(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, text, "About the role")
}

func TestAcquire_NoBrowserByDefault(t *testing.T) {
	a := NewAcquirerWithTimeout(0, false, nil)
	assert.False(t, a.useBrowser)
	assert.Nil(t, a.renderer)
}
