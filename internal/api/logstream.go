package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/claw4business/claude-code-slackbot/internal/config"
	"github.com/claw4business/claude-code-slackbot/internal/domain"
	"github.com/claw4business/claude-code-slackbot/internal/runner"
	"github.com/claw4business/claude-code-slackbot/internal/store"
)

// logChunkBytes caps a single WebSocket message.
const logChunkBytes = 32 * 1024

// LogStreamHandler streams task output over WebSocket. The runner backend
// replays the recent tail and then follows the session as it writes, so
// tmux tasks stream from their log file and docker tasks from the daemon.
type LogStreamHandler struct {
	repo store.Repository
	cfg  *config.Config
	run  runner.Runner
}

// NewLogStreamHandler creates a new log stream handler.
func NewLogStreamHandler(repo store.Repository, cfg *config.Config, run runner.Runner) *LogStreamHandler {
	return &LogStreamHandler{repo: repo, cfg: cfg, run: run}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *LogStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("task")
	if name == "" {
		Error(w, http.StatusBadRequest, "task query parameter required")
		return
	}

	task, err := h.repo.GetTask(r.Context(), name)
	if err != nil {
		slog.Error("Failed to load task", "session", name, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	if task == nil {
		Error(w, http.StatusNotFound, "task not found")
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session", name)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session", name)
		}
	}()

	// The client never sends data; CloseRead cancels the context when it
	// goes away so a quiet log does not strand the handler.
	ctx := ws.CloseRead(r.Context())

	slog.Info("Log stream opened", "session", name, "ip", r.RemoteAddr)
	h.stream(ctx, ws, task)
	slog.Info("Log stream ended", "session", name)
}

func (h *LogStreamHandler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDevelopment() {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.cfg.AllowedOrigin == "" || h.cfg.AllowedOrigin == "*" {
		return true
	}
	if origin == h.cfg.AllowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.cfg.AllowedOrigin)
	return false
}

// stream pushes task output until the backend ends the stream or the client
// disconnects.
func (h *LogStreamHandler) stream(ctx context.Context, ws *websocket.Conn, task *domain.Task) {
	rc, err := h.run.FollowLog(ctx, task)
	if err != nil {
		slog.Warn("Failed to open log stream", "session", task.SessionName, "error", err)
		return
	}
	defer rc.Close()

	buf := make([]byte, logChunkBytes)
	for {
		n, readErr := rc.Read(buf)
		if n > 0 {
			if err := ws.Write(ctx, websocket.MessageText, buf[:n]); err != nil {
				if ctx.Err() == nil {
					slog.Debug("WebSocket write error", "error", err)
				}
				return
			}
		}
		if readErr != nil {
			return
		}
	}
}
