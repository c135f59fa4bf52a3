// File: internal/server/handlers.go
package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/internal/orchestrator"
)

// maxRequirementsBytes bounds the body of POST /api/runs.
const maxRequirementsBytes = 64 << 10

// StartRunRequest is the body of POST /api/runs.
type StartRunRequest struct {
	Requirements string `json:"requirements"`
}

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// handleHealthCheck confirms the server is responsive.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequirementsBytes+1))
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if len(body) > maxRequirementsBytes {
		s.respondWithError(w, http.StatusRequestEntityTooLarge, "Requirements text is too large.")
		return
	}
	var req StartRunRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Requirements) == "" {
		s.respondWithError(w, http.StatusBadRequest, "Requirements text is required.")
		return
	}
	state, ok := s.startRun(req.Requirements)
	if !ok {
		s.respondWithError(w, http.StatusConflict, "A generation run is already in progress.")
		return
	}
	s.logger.Info("Run accepted", zap.String("run_id", state.id))
	s.respondWithStatus(w, http.StatusAccepted, "accepted", map[string]string{
		"run_id":  state.id,
		"status":  fmt.Sprintf("/api/runs/%s", state.id),
		"updates": fmt.Sprintf("/ws/runs/%s", state.id),
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	state, ok := s.runs.Get(chi.URLParam(r, "runID"))
	if !ok {
		s.respondWithError(w, http.StatusNotFound, "Run ID not found in recent run cache.")
		return
	}
	latest, _ := state.latest()
	s.respondWithSuccess(w, http.StatusOK, latest)
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	state, ok := s.runs.Get(chi.URLParam(r, "runID"))
	if !ok {
		s.respondWithError(w, http.StatusNotFound, "Run ID not found in recent run cache.")
		return
	}
	final, ok := state.final()
	if !ok {
		s.respondWithError(w, http.StatusConflict, "Run has not finished.")
		return
	}
	data, err := orchestrator.BuildBundle(final, s.components.Layout)
	if err != nil {
		s.respondWithError(w, http.StatusConflict, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="agentforge-%s.zip"`, state.id))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("Failed to write bundle", zap.Error(err))
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.components.Ledger == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "Run history is unavailable (database not configured).")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondWithError(w, http.StatusBadRequest, "limit must be a non-negative integer.")
			return
		}
		limit = n
	}
	runs, err := s.components.Ledger.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list runs", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Internal error retrieving run history.")
		return
	}
	s.respondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, _ *http.Request) {
	s.respondWithSuccess(w, http.StatusOK, s.components.Tracker.UsageReport())
}

func (s *Server) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, APIResponse{Status: "error", Error: message})
}

func (s *Server) respondWithSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	s.respondWithStatus(w, statusCode, "success", data)
}

func (s *Server) respondWithStatus(w http.ResponseWriter, statusCode int, status string, data interface{}) {
	s.writeJSON(w, statusCode, APIResponse{Status: status, Data: data})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
