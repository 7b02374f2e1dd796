// Package api provides the HTTP handlers that surround the dialogue agent:
// health, identity and client configuration.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/cadence/internal/config"
	"github.com/ashureev/cadence/internal/dialogue"
	"github.com/ashureev/cadence/internal/store"
)

// Engine is the part of the dialogue engine the handlers report on.
type Engine interface {
	Menu() []dialogue.MenuView
	Registry() *dialogue.Registry
}

// Handler serves the non-dialogue routes.
type Handler struct {
	repo   store.Repository
	engine Engine
	cfg    *config.Config
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, engine Engine, cfg *config.Config) *Handler {
	return &Handler{
		repo:   repo,
		engine: engine,
		cfg:    cfg,
	}
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
