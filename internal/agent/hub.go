package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const liveWriteTimeout = 5 * time.Second

// liveConn is the part of a websocket connection the hub writes to.
type liveConn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Hub tracks the live dialogue connections of every project key and fans
// agent replies out to them. A project may be open in several tabs.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]liveConn
	log    *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		active: make(map[string]map[string]liveConn),
		log:    log,
	}
}

// Register adds a connection for a project key.
func (h *Hub) Register(project, connID string, conn liveConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[project]; !exists {
		h.active[project] = make(map[string]liveConn)
	}
	if existing, exists := h.active[project][connID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "connection replaced")
	}
	h.active[project][connID] = conn
	h.log.Info("Live dialogue connection registered", "project", project, "conn_id", connID)
}

// Unregister removes a connection if it is still the registered one.
func (h *Hub) Unregister(project, connID string, conn liveConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.active[project]; ok {
		if current, exists := conns[connID]; exists && current == conn {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(h.active, project)
			}
			h.log.Info("Live dialogue connection unregistered", "project", project, "conn_id", connID)
		}
	}
}

// Count returns the number of connections open for a project key.
func (h *Hub) Count(project string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[project])
}

// Broadcast sends event to every connection of a project key. Write failures
// are logged; the reader loop of a broken connection unregisters it.
func (h *Hub) Broadcast(project string, event LiveEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("Failed to marshal live event", "error", err, "project", project)
		return
	}

	h.mu.RLock()
	conns := make([]liveConn, 0, len(h.active[project]))
	for _, c := range h.active[project] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), liveWriteTimeout)
		if err := c.Write(ctx, websocket.MessageText, data); err != nil {
			h.log.Debug("Live dialogue write failed", "error", err, "project", project)
		}
		cancel()
	}
}

// CloseProject closes every connection of a project key.
func (h *Hub) CloseProject(project string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.active[project]
	if !ok {
		return
	}
	for id, c := range conns {
		_ = c.Close(websocket.StatusNormalClosure, "project closed")
		h.log.Info("Live dialogue connection closed", "project", project, "conn_id", id)
	}
	delete(h.active, project)
}
