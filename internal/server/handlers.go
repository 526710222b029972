package server

import (
	"bytes"
	"crypto/md5" //nolint:gosec // identity hash, not a security boundary
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clintjohnsn/pytchdeck/internal/logger"
	"github.com/clintjohnsn/pytchdeck/internal/ingestion"
	"github.com/clintjohnsn/pytchdeck/internal/pipeline"
	"github.com/clintjohnsn/pytchdeck/internal/types"
)

// ThreadIDHeader lets callers choose the checkpoint thread explicitly.
const ThreadIDHeader = "X-Thread-Id"

const maxRequestBytes = 1 << 20

// pitchCall is a decoded and validated generate request.
type pitchCall struct {
	req      types.PitchRequest
	threadID string
	host     string
}

// handleGenerate runs the workflow and returns the deck link
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	call, err := s.decodePitch(w, r)
	if err != nil {
		s.writeError(w, "", err)
		return
	}

	out, err := s.workflow.Run(r.Context(), call.req, s.executionContext(call, nil), s.candidateContext)
	if err != nil {
		s.writeError(w, call.threadID, err)
		return
	}

	w.Header().Set(ThreadIDHeader, call.threadID)
	s.jsonResponse(w, http.StatusOK, out)
}

// handleGenerateStream runs the workflow and streams progress as SSE
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	call, err := s.decodePitch(w, r)
	if err != nil {
		s.writeError(w, "", err)
		return
	}

	w.Header().Set(ThreadIDHeader, call.threadID)
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	onProgress := func(ev pipeline.ProgressEvent) {
		if err := sse.WriteEvent(EventStep, ev); err != nil {
			s.logger.Debug("client went away", zap.Error(err))
		}
	}

	out, err := s.workflow.Run(r.Context(), call.req, s.executionContext(call, onProgress), s.candidateContext)
	if err != nil {
		s.logWorkflowError(call.threadID, err)
		sse.WriteError(ErrorBody(err))
		return
	}
	sse.WriteComplete(call.threadID, out)
}

func (s *Server) executionContext(call *pitchCall, onProgress pipeline.ProgressCallback) pipeline.ExecutionContext {
	return pipeline.ExecutionContext{
		ThreadID:   call.threadID,
		Host:       call.host,
		OnProgress: onProgress,
	}
}

// decodePitch reads the body, validates it and resolves the thread id and host.
func (s *Server) decodePitch(w http.ResponseWriter, r *http.Request) (*pitchCall, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		return nil, &ErrValidation{Field: "body", Message: "could not read request body"}
	}

	var req types.PitchRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&req); err != nil {
		return nil, &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	if !req.HasInput() {
		return nil, pipeline.ErrNoInput
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	// links are checked even when inline text wins, so a bad link never reaches a thread
	if req.JobDescriptionLink != "" {
		if err := ingestion.CheckScheme(req.JobDescriptionLink); err != nil {
			return nil, err
		}
	}

	threadID, err := resolveThreadID(r.Header.Get(ThreadIDHeader), body)
	if err != nil {
		return nil, err
	}
	return &pitchCall{req: req, threadID: threadID, host: s.publicHost(r)}, nil
}

// resolveThreadID prefers the caller's header, then a hash of the body so
// identical retries resume the same thread, then a fresh uuid.
func resolveThreadID(header string, body []byte) (string, error) {
	if header != "" {
		if !pipeline.ValidThreadID(header) {
			return "", pipeline.ErrInvalidThreadID
		}
		return header, nil
	}
	if id, ok := bodyHash(body); ok {
		return id, nil
	}
	return uuid.NewString(), nil
}

// bodyHash re-encodes the JSON body with sorted keys and hashes it.
func bodyHash(body []byte) (string, bool) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		return "", false
	}
	canonical, err := json.Marshal(fields)
	if err != nil {
		return "", false
	}
	sum := md5.Sum(canonical) //nolint:gosec
	return hex.EncodeToString(sum[:]), true
}

// publicHost is the base URL artifact links are built on.
func (s *Server) publicHost(r *http.Request) string {
	if s.cfg.PublicHost != "" {
		return s.cfg.PublicHost
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd == "http" || fwd == "https" {
		scheme = fwd
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

func (s *Server) writeError(w http.ResponseWriter, threadID string, err error) {
	s.logWorkflowError(threadID, err)
	s.jsonResponse(w, HTTPStatus(err), ErrorBody(err))
}

func (s *Server) logWorkflowError(threadID string, err error) {
	log := logger.WithThread(s.logger, threadID)
	if HTTPStatus(err) >= http.StatusInternalServerError {
		log.Error("pitch request failed", zap.String(logger.FieldStep, pipeline.FailedStep(err)), zap.Error(err))
		return
	}
	log.Info("pitch request rejected", zap.String(logger.FieldStep, pipeline.FailedStep(err)), zap.Error(err))
}
