package agent

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/cadence/internal/api"
	"github.com/ashureev/cadence/internal/config"
	"github.com/ashureev/cadence/internal/dialogue"
	"github.com/ashureev/cadence/internal/identity"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20 // 1MB

const maxProjectNameLen = 128

// Handler serves the dialogue REST routes.
type Handler struct {
	service     *Service
	rateLimiter *RateLimiter
	maxBodySize int64
}

// RateLimiter implements a per-user rate limiter.
// The key is userID only, not userID:sessionID, so clients cannot bypass
// throttling by rotating session IDs.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a new rate limiter and starts the background eviction goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		done:     make(chan struct{}),
	}
	rl.startEviction()
	return rl
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Stop ends the eviction goroutine.
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

// startEviction runs a background goroutine that periodically removes expired
// keys from the requests map, preventing unbounded memory growth.
func (r *RateLimiter) startEviction() {
	go func() {
		ticker := time.NewTicker(r.window)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
			}
			r.mu.Lock()
			cutoff := time.Now().Add(-r.window)
			for key, times := range r.requests {
				var fresh []time.Time
				for _, t := range times {
					if t.After(cutoff) {
						fresh = append(fresh, t)
					}
				}
				if len(fresh) == 0 {
					delete(r.requests, key)
				} else {
					r.requests[key] = fresh
				}
			}
			r.mu.Unlock()
		}
	}()
}

// NewHandler creates the REST handler. Student messages are rate limited per
// user with limiter.
func NewHandler(service *Service, limiter *RateLimiter, cfg *config.Config) *Handler {
	maxBodySize := int64(defaultMaxRequestBodySize)
	if cfg != nil && cfg.RateLimit.MaxRequestBodySize > 0 {
		maxBodySize = cfg.RateLimit.MaxRequestBodySize
	}
	return &Handler{
		service:     service,
		rateLimiter: limiter,
		maxBodySize: maxBodySize,
	}
}

// RegisterRoutes registers the dialogue routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/projects/{project}", func(r chi.Router) {
		r.Use(h.requireProject)
		r.Post("/activate", h.HandleActivate)
		r.With(h.rateLimit).Post("/dialogue", h.HandleDialogue)
		r.With(h.rateLimit).Post("/dialogue/next", h.HandleNext)
		r.Get("/buttons", h.HandleButtons)
		r.Post("/compile/error", h.HandleCompileError)
		r.Post("/compile/success", h.HandleCompileSuccess)
		r.Post("/code", h.HandleCode)
		r.Get("/waits", h.HandleWaits)
		r.Get("/history", h.HandleHistory)
		r.Get("/state", h.HandleState)
		r.Post("/interact", h.HandleInteract)
		r.Post("/curriculum", h.HandleCurriculum)
		r.Post("/overlaps", h.HandleOverlaps)
		r.Post("/ui", h.HandleUI)
	})
}

func validProjectName(name string) bool {
	return name != "" && utf8.ValidString(name) && len(name) <= maxProjectNameLen
}

func (h *Handler) requireProject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity.UserIDFromContext(r.Context()) == "" {
			api.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !validProjectName(chi.URLParam(r, "project")) {
			api.Error(w, http.StatusBadRequest, "invalid project")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit throttles by userID only (not userID:sessionID).
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.rateLimiter != nil && !h.rateLimiter.Allow(identity.UserIDFromContext(r.Context())) {
			api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFrom(r *http.Request) (Caller, string) {
	return Caller{
		UserID:    identity.UserIDFromContext(r.Context()),
		SessionID: identity.SessionIDFromContext(r.Context()),
		RequestID: chiMiddleware.GetReqID(r.Context()),
		Channel:   "dialogue_http",
	}, chi.URLParam(r, "project")
}

// decode reads a JSON body into v. An empty body leaves v unchanged.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			return true
		default:
			api.Error(w, http.StatusBadRequest, "invalid request body")
		}
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dialogue.ErrProjectNotStarted):
		api.Error(w, http.StatusConflict, "project not activated")
	case errors.Is(err, dialogue.ErrUnknownNode):
		api.Error(w, http.StatusBadRequest, "unknown dialogue option")
	case isClientError(err):
		api.Error(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("Dialogue request failed", "error", err, "path", r.URL.Path,
			"request_id", chiMiddleware.GetReqID(r.Context()))
		api.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// HandleActivate handles POST /api/projects/{project}/activate.
func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	c, name := callerFrom(r)
	var req ActivateRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.Activate(r.Context(), c, name, req.Language)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, p)
}

// HandleDialogue handles POST /api/projects/{project}/dialogue.
func (h *Handler) HandleDialogue(w http.ResponseWriter, r *http.Request) {
	c, name := callerFrom(r)
	var req DialogueRequest
	if !h.decode(w, r, &req) {
		return
	}
	reply, err := h.service.Dialogue(r.Context(), c, name, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, reply)
}

// HandleNext handles POST /api/projects/{project}/dialogue/next.
func (h *Handler) HandleNext(w http.ResponseWriter, r *http.Request) {
	c, name := callerFrom(r)
	var req NextRequest
	if !h.decode(w, r, &req) {
		return
	}
	reply, err := h.service.Next(r.Context(), c, name, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, reply)
}

// HandleButtons handles GET /api/projects/{project}/buttons.
func (h *Handler) HandleButtons(w http.ResponseWriter, r *http.Request) {
	c, name := callerFrom(r)
	buttons, err := h.service.Buttons(r.Context(), c, name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, buttons)
}

// HandleCompileError handles POST /api/projects/{project}/compile/error.
func (h *Handler) HandleCompileError(w http.ResponseWriter, r *http.Request) {
	c, name := callerFrom(r)
	var req CompileErrorRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Error.Type == "" && req.Error.Message == "" {
		api.Error(w, http.StatusBadRequest, "error is required")
		return
	}
	resp, err := h.service.CompileError(r.Context(), c, name, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

// HandleCompileSuccess handles POST /api/projects/{project}/compile/success.
func (h *Handler) HandleCompileSuccess(w http.ResponseWriter, r *http.Request) {
	c, name := callerFrom(r)
	var req CompileSuccessRequest
	if !h.decode(w, r, &req) {
		return
	}
	reply, err := h.service.CompileSuccess(r.Context(), c, name, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, reply)
}

// HandleCode handles POST /api/projects/{project}/code.
func (h *Handler) HandleCode(w http.ResponseWriter, r *http.Request) {
	c, name := callerFrom(r)
	var req CodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	reply, err := h.service.Code(r.Context(), c, name, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, reply)
}

// HandleWaits handles GET /api/projects/{project}/waits.
func (h *Handler) HandleWaits(w http.ResponseWriter, r *http.Request) {
	c, name := callerFrom(r)
	waiting, err := h.service.Waits(c, name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, WaitsResponse{Waiting: waiting})
}

// HandleHistory handles GET /api/projects/{project}/history?limit=n.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	c, name := callerFrom(r)
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	records, err := h.service.History(r.Context(), c, name, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, records)
}

// HandleState handles GET /api/projects/{project}/state.
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	c, name := callerFrom(r)
	view, err := h.service.State(c, name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, view)
}

// HandleInteract handles POST /api/projects/{project}/interact.
func (h *Handler) HandleInteract(w http.ResponseWriter, r *http.Request) {
	c, name := callerFrom(r)
	req := InteractRequest{Interacted: true}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.Interact(c, name, req.Interacted); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCurriculum handles POST /api/projects/{project}/curriculum.
func (h *Handler) HandleCurriculum(w http.ResponseWriter, r *http.Request) {
	c, name := callerFrom(r)
	var req CurriculumRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Page == "" {
		api.Error(w, http.StatusBadRequest, "page is required")
		return
	}
	if err := h.service.Curriculum(c, name, req.Page); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleOverlaps handles POST /api/projects/{project}/overlaps.
func (h *Handler) HandleOverlaps(w http.ResponseWriter, r *http.Request) {
	c, name := callerFrom(r)
	var req OverlapsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.Overlaps(c, name, req.Overlaps); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUI handles POST /api/projects/{project}/ui.
func (h *Handler) HandleUI(w http.ResponseWriter, r *http.Request) {
	c, name := callerFrom(r)
	var req dialogue.UIState
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.UI(c, name, req); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
