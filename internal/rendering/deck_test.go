package rendering

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clintjohnsn/pytchdeck/internal/llm"
	"github.com/clintjohnsn/pytchdeck/internal/llm/llmtest"
)

const deckMarkdown = `## Hello
I build **backend** systems.

---

## Experience
- 6 years Go
- Distributed systems

---

## Contact
<script>alert('x')</script>
[Portfolio](https://example.com)`

func TestRenderDeck(t *testing.T) {
	html, err := RenderDeck("", deckMarkdown, RenderOptions{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<title>Pitch Deck</title>")
	assert.Equal(t, 3, strings.Count(html, "<section "))
	assert.Contains(t, html, "<strong>backend</strong>")
	assert.Contains(t, html, "<li>6 years Go</li>")
	assert.Contains(t, html, `href="https://example.com"`)
	assert.Contains(t, html, DefaultRevealBase+"/dist/theme/white.css")
	assert.NotContains(t, html, "alert('x')")
}

func TestRenderDeck_EscapesTitle(t *testing.T) {
	html, err := RenderDeck("<b>Deck</b>", "## One", RenderOptions{Theme: "night"})
	require.NoError(t, err)
	assert.Contains(t, html, "<title>&lt;b&gt;Deck&lt;/b&gt;</title>")
	assert.Contains(t, html, "theme/night.css")
}

func TestRenderDeck_NoSlides(t *testing.T) {
	_, err := RenderDeck("", "---\n", RenderOptions{})
	var renderErr *RenderError
	assert.ErrorAs(t, err, &renderErr)
}

func TestRenderSlide_StripsEventHandlers(t *testing.T) {
	html, err := RenderSlide(`<img src="x.png" onerror="steal()">`)
	require.NoError(t, err)
	assert.NotContains(t, string(html), "onerror")
}

func TestDeckGenerator_Generate(t *testing.T) {
	stub := llmtest.New(deckMarkdown)
	html, err := NewDeckGenerator(stub, nil).Generate(context.Background(), "assessment\n\ncandidate")
	require.NoError(t, err)

	assert.Contains(t, html, "<!DOCTYPE html>")
	call := stub.LastCall()
	assert.Equal(t, llm.TierAdvanced, call.Tier)
	assert.Contains(t, call.Prompt, "assessment\n\ncandidate")
	assert.Contains(t, call.Opts.System, "---")
	assert.InDelta(t, 0.4, *call.Opts.Temperature, 1e-6)
}

func TestDeckGenerator_EmptyResponse(t *testing.T) {
	_, err := NewDeckGenerator(llmtest.New("   "), nil).Generate(context.Background(), "content")
	var renderErr *RenderError
	assert.ErrorAs(t, err, &renderErr)
}

func TestDeckGenerator_ModelError(t *testing.T) {
	cause := errors.New("overloaded")
	_, err := NewDeckGenerator(&llmtest.Stub{Err: cause}, nil).Generate(context.Background(), "content")
	assert.ErrorIs(t, err, cause)
}
