package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/cadence/internal/dialogue"
	"github.com/ashureev/cadence/internal/domain"
	"github.com/ashureev/cadence/internal/identity"
)

const healthTimeout = 2 * time.Second

// HealthResponse reports service readiness.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Sessions int    `json:"sessions"`
}

// MeResponse describes the caller.
type MeResponse struct {
	UserID    string            `json:"user_id"`
	Username  string            `json:"username"`
	SessionID string            `json:"session_id"`
	Projects  []*domain.Project `json:"projects"`
}

// ConfigResponse is what the client needs to draw the chat panel.
type ConfigResponse struct {
	Menus          []dialogue.MenuView `json:"menus"`
	Telemetry      bool                `json:"telemetry"`
	RateLimit      int                 `json:"rate_limit"`
	RateWindowSecs int                 `json:"rate_window_secs"`
	MaxBodyBytes   int64               `json:"max_body_bytes"`
}

// RegisterHealth registers the readiness check.
func (h *Handler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.HandleHealth)
}

// RegisterRoutes registers the identity-scoped routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/me", h.HandleMe)
	r.Get("/api/config", h.HandleConfig)
}

// HandleHealth handles GET /api/health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "ok", Sessions: h.engine.Registry().Len()}
	if err := h.repo.Ping(ctx); err != nil {
		slog.Warn("Health check database ping failed", "error", err)
		resp.Status = "degraded"
		resp.Database = "unreachable"
		JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// HandleMe handles GET /api/me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	projects, err := h.repo.ListProjects(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list projects", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to load projects")
		return
	}
	if projects == nil {
		projects = []*domain.Project{}
	}
	JSON(w, http.StatusOK, MeResponse{
		UserID:    userID,
		Username:  identity.UsernameFromContext(r.Context()),
		SessionID: identity.SessionIDFromContext(r.Context()),
		Projects:  projects,
	})
}

// HandleConfig handles GET /api/config.
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, ConfigResponse{
		Menus:          h.engine.Menu(),
		Telemetry:      h.cfg.TelemetryEnabled(),
		RateLimit:      h.cfg.RateLimit.RequestsPerWindow,
		RateWindowSecs: int(h.cfg.RateLimit.WindowDuration.Seconds()),
		MaxBodyBytes:   h.cfg.RateLimit.MaxRequestBodySize,
	})
}
