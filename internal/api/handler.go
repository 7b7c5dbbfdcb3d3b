// Package api provides the status HTTP surface of the launcher daemon.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claw4business/claude-code-slackbot/internal/config"
	"github.com/claw4business/claude-code-slackbot/internal/domain"
	"github.com/claw4business/claude-code-slackbot/internal/store"
)

const healthCheckTimeout = 5 * time.Second

// Handler bundles the dependencies of the status endpoints.
type Handler struct {
	repo store.Repository
	cfg  *config.Config
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, cfg *config.Config) *Handler {
	return &Handler{repo: repo, cfg: cfg}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Routes mounts the status endpoints on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/api/tasks", h.Tasks)
	r.Get("/api/escalations/{sessionID}", h.Escalation)
}

// Health returns the health status of the daemon and its dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := map[string]interface{}{
		"status": "healthy",
		"checks": map[string]string{"api": "ok"},
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		status["checks"].(map[string]string)["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		status["checks"].(map[string]string)["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// Tasks lists the currently tracked Claude Code sessions.
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.repo.ListTasks(r.Context())
	if err != nil {
		slog.Error("Failed to list tasks", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// Escalation reports the state of one escalated question: the session row
// and, once a reply was accepted, the answer of record.
func (h *Handler) Escalation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.repo.GetSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to load session", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if session == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	answer, err := h.repo.GetAnswer(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to load answer", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load answer")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session":  session,
		"answer":   answer,
		"answered": answer != nil,
	})
}
