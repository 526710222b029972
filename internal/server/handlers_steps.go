package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/clintjohnsn/pytchdeck/internal/logger"
	"github.com/clintjohnsn/pytchdeck/internal/pipeline"
	"github.com/clintjohnsn/pytchdeck/internal/pipeline/steps"
)

// RunStepsResponse represents the checkpoint view of a thread
type RunStepsResponse struct {
	ThreadID  string             `json:"thread_id"`
	Steps     []steps.StepStatus `json:"steps"`
	Completed []string           `json:"completed"`
	Available []string           `json:"available"`
}

// handleListRunSteps lists every step of a thread with its checkpoint state
func (s *Server) handleListRunSteps(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	if !pipeline.ValidThreadID(threadID) {
		s.writeError(w, "", pipeline.ErrInvalidThreadID)
		return
	}

	statuses, err := s.workflow.Steps(r.Context(), threadID)
	if err != nil {
		logger.WithThread(s.logger, threadID).Error("failed to list steps", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "Failed to list steps")
		return
	}

	completed := []string{}
	for _, st := range statuses {
		if st.State == steps.StateCompleted {
			completed = append(completed, st.Name)
		}
	}
	available := steps.Available(statuses)
	if available == nil {
		available = []string{}
	}

	s.jsonResponse(w, http.StatusOK, RunStepsResponse{
		ThreadID:  threadID,
		Steps:     statuses,
		Completed: completed,
		Available: available,
	})
}

// handleResetRun clears a thread's checkpoints so the next run starts over
func (s *Server) handleResetRun(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	if !pipeline.ValidThreadID(threadID) {
		s.writeError(w, "", pipeline.ErrInvalidThreadID)
		return
	}

	if err := s.workflow.Reset(r.Context(), threadID); err != nil {
		logger.WithThread(s.logger, threadID).Error("failed to reset run", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "Failed to reset run")
		return
	}

	logger.WithThread(s.logger, threadID).Info("run reset")
	w.WriteHeader(http.StatusNoContent)
}
