package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/ashureev/cadence/internal/domain"
	"github.com/ashureev/cadence/internal/identity"
	"github.com/ashureev/cadence/internal/store"
)

// LiveHandler serves the dialogue websocket. Clients send the same requests
// as the REST routes; every reply for the project, whichever channel caused
// it, arrives as a LiveEvent.
type LiveHandler struct {
	service       *Service
	hub           *Hub
	repo          store.Repository
	limiter       *RateLimiter
	allowedOrigin string
	isDev         bool
}

// NewLiveHandler creates a new websocket handler.
func NewLiveHandler(service *Service, hub *Hub, repo store.Repository, limiter *RateLimiter, allowedOrigin string, isDev bool) *LiveHandler {
	return &LiveHandler{
		service:       service,
		hub:           hub,
		repo:          repo,
		limiter:       limiter,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	name := r.URL.Query().Get("project")
	slog.Info("Live dialogue connection request", "user_id", userID, "session_id", sessionID, "project", name, "ip", identity.IPFromRequest(r))

	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if !validProjectName(name) {
		http.Error(w, `{"error": "invalid project"}`, http.StatusBadRequest)
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
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	caller := Caller{UserID: userID, SessionID: sessionID, RequestID: uuid.NewString(), Channel: "dialogue_ws"}
	if _, err := h.service.State(caller, name); err != nil {
		if _, err := h.service.Activate(r.Context(), caller, name, r.URL.Query().Get("language")); err != nil {
			h.writeJSON(ws, LiveEvent{Type: EventError, Project: name, Error: err.Error()})
			return
		}
	}

	key := domain.ProjectKey(userID, name)
	connID := caller.RequestID
	h.hub.Register(key, connID, ws)
	defer h.hub.Unregister(key, connID, ws)

	h.writeJSON(ws, LiveEvent{Type: EventConnected, Project: name})
	h.readLoop(r.Context(), ws, caller, name)
	slog.Info("Live dialogue session ended", "user_id", userID, "project", name)
}

func (h *LiveHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *LiveHandler) readLoop(ctx context.Context, ws *websocket.Conn, caller Caller, name string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", caller.UserID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", caller.UserID)
			}
			return
		}

		var msg LiveMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.writeJSON(ws, LiveEvent{Type: EventError, Project: name, Error: "invalid message"})
			continue
		}
		if err := h.dispatch(ctx, ws, caller, name, msg); err != nil {
			h.writeJSON(ws, LiveEvent{Type: EventError, Project: name, Error: err.Error()})
		}

		go func() {
			updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.repo.UpdateLastSeen(updateCtx, caller.UserID, time.Now()); err != nil {
				slog.Warn("Failed to update last seen", "error", err)
			}
		}()
	}
}

// dispatch runs one client message. Replies reach the client through the
// hub, so only pings and failures are answered directly.
func (h *LiveHandler) dispatch(ctx context.Context, ws *websocket.Conn, caller Caller, name string, msg LiveMessage) error {
	switch msg.Type {
	case "dialogue":
		if h.limiter != nil && !h.limiter.Allow(caller.UserID) {
			h.writeJSON(ws, LiveEvent{Type: EventError, Project: name, Error: "rate limit exceeded"})
			return nil
		}
		_, err := h.service.Dialogue(ctx, caller, name, DialogueRequest{Input: msg.Input, Direct: msg.Direct})
		return err
	case "next":
		_, err := h.service.Next(ctx, caller, name, NextRequest{Utterance: msg.Utterance})
		return err
	case "code":
		_, err := h.service.Code(ctx, caller, name, CodeRequest{Source: msg.Source})
		return err
	case "ping":
		h.writeJSON(ws, LiveEvent{Type: EventPong, Project: name})
		return nil
	default:
		h.writeJSON(ws, LiveEvent{Type: EventError, Project: name, Error: "unknown message type"})
		return nil
	}
}

func (h *LiveHandler) writeJSON(ws *websocket.Conn, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal live event", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), liveWriteTimeout)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("Failed to write live event", "error", err)
	}
}
