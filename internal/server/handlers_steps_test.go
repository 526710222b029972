package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clintjohnsn/pytchdeck/internal/assessment"
	"github.com/clintjohnsn/pytchdeck/internal/checkpoint"
	"github.com/clintjohnsn/pytchdeck/internal/guardrails"
	"github.com/clintjohnsn/pytchdeck/internal/ingestion"
	"github.com/clintjohnsn/pytchdeck/internal/llm/llmtest"
	"github.com/clintjohnsn/pytchdeck/internal/pipeline"
	"github.com/clintjohnsn/pytchdeck/internal/pipeline/steps"
	"github.com/clintjohnsn/pytchdeck/internal/rendering"
	"github.com/clintjohnsn/pytchdeck/internal/server/ratelimit"
	"github.com/clintjohnsn/pytchdeck/internal/types"
)

const deckMarkdown = "# Why me\nSix years of Go.\n\n---\n\n# Fit\n- distributed systems\n"

// engineHarness wires the real engine to scripted model clients.
type engineHarness struct {
	validator *llmtest.Stub
	assessor  *llmtest.Stub
	generator *llmtest.Stub
	store     *checkpoint.MemoryStore
	dir       string
	handler   http.Handler
}

func newEngineHarness(t *testing.T, verdict string) *engineHarness {
	t.Helper()
	h := &engineHarness{
		validator: llmtest.New(verdict),
		assessor:  llmtest.New("Strong match on Go and distributed systems."),
		generator: llmtest.New(deckMarkdown),
		store:     checkpoint.NewMemoryStore(),
		dir:       t.TempDir(),
	}

	engine, err := pipeline.NewEngine(pipeline.Deps{
		Acquirer:  ingestion.NewAcquirer(),
		Validator: guardrails.NewValidator(h.validator, "Software Engineer", nil),
		Assessor:  assessment.NewFitAssessor(h.assessor, nil),
		Generator: rendering.NewDeckGenerator(h.generator, nil),
		Writer:    pipeline.NewFileWriter(h.dir),
		Store:     h.store,
	}, nil)
	require.NoError(t, err)

	s := New(Config{
		APIPrefix:    "/api/v1",
		GeneratedDir: h.dir,
		RateLimit:    &ratelimit.Config{Enabled: false},
	}, engine, "Experienced backend engineer, 6 years Go.", nil)
	t.Cleanup(s.Close)
	h.handler = s.Handler()
	return h
}

func (h *engineHarness) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestEngine_GenerateServesDeck(t *testing.T) {
	h := newEngineHarness(t, `{"is_valid": true, "reason": "VALID_JD"}`)

	w := postJSON(t, h.handler, "/api/v1/generate", types.PitchRequest{JobDescription: testJD}, ThreadIDHeader, "abc123")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out types.PitchOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "http://example.com/pitch/pitch_abc123.html", out.Link)

	onDisk, err := os.ReadFile(filepath.Join(h.dir, "pitch_abc123.html"))
	require.NoError(t, err)
	assert.Contains(t, string(onDisk), "Six years of Go.")

	served := h.get("/pitch/pitch_abc123.html")
	require.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, string(onDisk), served.Body.String())

	listed := h.get("/api/v1/runs/abc123/steps")
	require.Equal(t, http.StatusOK, listed.Code)
	var resp RunStepsResponse
	require.NoError(t, json.Unmarshal(listed.Body.Bytes(), &resp))
	assert.Len(t, resp.Completed, 5)
	assert.Empty(t, resp.Available)
}

func TestEngine_ReplayAndReset(t *testing.T) {
	h := newEngineHarness(t, `{"is_valid": true, "reason": "VALID_JD"}`)
	body := types.PitchRequest{JobDescription: testJD}

	require.Equal(t, http.StatusOK, postJSON(t, h.handler, "/api/v1/generate", body, ThreadIDHeader, "t1").Code)
	require.Equal(t, http.StatusOK, postJSON(t, h.handler, "/api/v1/generate", body, ThreadIDHeader, "t1").Code)
	assert.Len(t, h.generator.Calls(), 1, "replay reads checkpoints")

	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/runs/t1", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	var resp RunStepsResponse
	require.NoError(t, json.Unmarshal(h.get("/api/v1/runs/t1/steps").Body.Bytes(), &resp))
	assert.Empty(t, resp.Completed)
	assert.Equal(t, []string{steps.ResolveContent}, resp.Available)

	require.Equal(t, http.StatusOK, postJSON(t, h.handler, "/api/v1/generate", body, ThreadIDHeader, "t1").Code)
	assert.Len(t, h.generator.Calls(), 2, "reset forces regeneration")
}

func TestEngine_RejectionIsBadRequest(t *testing.T) {
	h := newEngineHarness(t, `{"is_valid": false, "reason": "NO_MATCH"}`)

	w := postJSON(t, h.handler, "/api/v1/generate", types.PitchRequest{JobDescription: testJD}, ThreadIDHeader, "rej")
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, "NO_MATCH", resp.Reason)
	assert.Equal(t, steps.ValidateJD, resp.Step)
	assert.Empty(t, h.assessor.Calls())
	assert.Empty(t, h.generator.Calls())
}

func TestEngine_MalformedVerdictIsStructureParsing(t *testing.T) {
	h := newEngineHarness(t, `{"valid": "maybe"}`)

	w := postJSON(t, h.handler, "/api/v1/generate", types.PitchRequest{JobDescription: testJD})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ReasonStructureParsing, decodeError(t, w).Reason)
}

func TestEngine_LinkInputs(t *testing.T) {
	jobPage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body></body></html>"))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><main><h1>Senior Go Engineer</h1><p>" +
			strings.Repeat("Build distributed systems in Go. ", 30) + "</p></main></body></html>"))
	}))
	defer jobPage.Close()

	t.Run("fetched page feeds the workflow", func(t *testing.T) {
		h := newEngineHarness(t, `{"is_valid": true, "reason": "VALID_JD"}`)
		w := postJSON(t, h.handler, "/api/v1/generate", types.PitchRequest{JobDescriptionLink: jobPage.URL + "/job"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, h.validator.LastCall().Prompt, "Build distributed systems in Go.")
	})

	t.Run("empty page is no content", func(t *testing.T) {
		h := newEngineHarness(t, `{"is_valid": true, "reason": "VALID_JD"}`)
		w := postJSON(t, h.handler, "/api/v1/generate", types.PitchRequest{JobDescriptionLink: jobPage.URL + "/empty"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "NO_CONTENT", decodeError(t, w).Reason)
		assert.Empty(t, h.validator.Calls())
	})
}
