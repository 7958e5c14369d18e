package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/robopeer/internal/control"
	"github.com/autopeer-io/robopeer/pkg/log"
)

// SubmitRequest is the body of POST /api/v1/commands.
type SubmitRequest struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Priority   *int           `json:"priority,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	Timeout    string         `json:"timeout,omitempty"`
}

// PruneResponse is the body returned by POST /api/v1/history/prune.
type PruneResponse struct {
	Removed int `json:"removed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	svc ControlService
}

func (h *handler) ready(w http.ResponseWriter, r *http.Request) {
	health := h.svc.Health(r.Context())
	if health.Status != control.HealthHealthy {
		http.Error(w, health.ExecutorError, http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Health(r.Context()))
}

func (h *handler) queue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.QueueStatus())
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	var body SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	req := control.Request{
		Name:       body.Name,
		Parameters: body.Parameters,
		Priority:   control.PriorityNormal,
		SessionID:  body.SessionID,
	}
	if body.Priority != nil {
		req.Priority = control.Priority(*body.Priority)
	}
	if body.Timeout != "" {
		d, err := time.ParseDuration(body.Timeout)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid timeout: %w", err))
			return
		}
		req.Timeout = d
	}

	handle, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	snap, err := handle.Status()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Status(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cancel(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) emergencyStop(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.EmergencyStop(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) resume(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Resume(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) prune(w http.ResponseWriter, r *http.Request) {
	var olderThan time.Duration
	if v := r.URL.Query().Get("older_than"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid older_than: %w", err))
			return
		}
		olderThan = d
	}
	writeJSON(w, http.StatusOK, PruneResponse{Removed: h.svc.PruneHistory(olderThan)})
}

func statusFor(err error) int {
	switch {
	case control.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, control.ErrEmergencyActive):
		return http.StatusConflict
	case errors.Is(err, control.ErrServiceClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, control.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Failed to write response")
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
