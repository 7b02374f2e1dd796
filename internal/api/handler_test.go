//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/cadence/internal/codeinfo"
	"github.com/ashureev/cadence/internal/config"
	"github.com/ashureev/cadence/internal/dialogue"
	"github.com/ashureev/cadence/internal/domain"
	"github.com/ashureev/cadence/internal/identity"
	"github.com/ashureev/cadence/internal/store"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func newTestRouter(t *testing.T) (http.Handler, store.Repository, *dialogue.Engine) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	engine, err := dialogue.New()
	if err != nil {
		t.Fatalf("dialogue.New failed: %v", err)
	}
	cfg := &config.Config{RateLimit: config.RateLimitConfig{
		RequestsPerWindow: 10, WindowDuration: time.Minute, MaxRequestBodySize: 1024,
	}}

	h := NewHandler(repo, engine, cfg)
	r := chi.NewRouter()
	h.RegisterHealth(r)
	h.RegisterRoutes(r)
	return r, repo, engine
}

func TestHealth(t *testing.T) {
	r, _, engine := newTestRouter(t)
	if err := engine.SetActiveProject("u:a.py", codeinfo.Python); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Status != "ok" || got.Sessions != 1 {
		t.Errorf("unexpected health %+v", got)
	}
}

func TestMeListsProjects(t *testing.T) {
	r, repo, _ := newTestRouter(t)
	now := time.Now()
	if err := repo.UpsertProject(t.Context(), &domain.Project{
		UserID: "anon_x", Name: "song.py", Language: "python", LastActiveAt: now, CreatedAt: now,
	}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = req.WithContext(identity.WithUser(req.Context(), "anon_x", "tab"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var got MeResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.UserID != "anon_x" || got.SessionID != "tab" || len(got.Projects) != 1 {
		t.Errorf("unexpected me %+v", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d without identity, want 401", w.Code)
	}
}

func TestConfigIncludesMenus(t *testing.T) {
	r, _, engine := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	var got ConfigResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Menus) != len(engine.Menu()) || len(got.Menus) == 0 {
		t.Errorf("menus = %d, want %d", len(got.Menus), len(engine.Menu()))
	}
	if got.RateLimit != 10 || got.RateWindowSecs != 60 || got.Telemetry {
		t.Errorf("unexpected config %+v", got)
	}
}
