// Cadence - co-creative music programming agent server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/cadence/internal/agent"
	"github.com/ashureev/cadence/internal/api"
	"github.com/ashureev/cadence/internal/config"
	"github.com/ashureev/cadence/internal/dialogue"
	"github.com/ashureev/cadence/internal/domain"
	"github.com/ashureev/cadence/internal/history"
	"github.com/ashureev/cadence/internal/identity"
	"github.com/ashureev/cadence/internal/middleware"
	"github.com/ashureev/cadence/internal/recommend"
	"github.com/ashureev/cadence/internal/store"
	"github.com/ashureev/cadence/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	uploader := newHistoryUploader(cfg, repo, logger)
	defer func() {
		if closeErr := uploader.Close(); closeErr != nil {
			slog.Error("Failed to close history uploader", "error", closeErr)
		}
		if dropped := uploader.Dropped(); dropped > 0 {
			slog.Warn("History records dropped", "count", dropped)
		}
	}()

	engine, err := newEngine(cfg, uploader, logger)
	if err != nil {
		slog.Error("Failed to initialize dialogue engine", "error", err)
		os.Exit(1)
	}
	slog.Info("Dialogue engine initialized", "content", cfg.Dialogue.ContentPath, "catalog", cfg.Dialogue.CatalogPath)

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}

	// Initialize services.
	hub := agent.NewHub(logger)
	service := agent.NewService(engine, repo, conversationLogger, hub, logger)
	defer func() {
		if closeErr := service.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	limiter := agent.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Stop()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, engine, cfg)
	agentHandler := agent.NewHandler(service, limiter, cfg)
	liveHandler := agent.NewLiveHandler(service, hub, repo, limiter, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	// Public routes.
	baseHandler.RegisterHealth(r)

	// All routes use identity middleware (no auth needed).
	baseHandler.RegisterRoutes(r)
	agentHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/dialogue", liveHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Websocket connections are long lived, so there is no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start idle worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent.StartIdleWorker(ctx, repo, engine, hub, cfg.ProjectIdleTTL, cfg.HistoryRetain)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return
	}

	slog.Info("Server stopped successfully")
}

// newEngine builds the dialogue engine from configured content files. Empty
// paths fall back to the embedded content.
func newEngine(cfg *config.Config, pub history.Publisher, log *slog.Logger) (*dialogue.Engine, error) {
	opts := []dialogue.EngineOption{
		dialogue.WithPublisher(pub),
		dialogue.WithLogger(log),
		dialogue.WithRecentScriptCache(cfg.Dialogue.RecentCache),
	}

	var rnd *rand.Rand
	if cfg.Dialogue.Seed != 0 {
		rnd = rand.New(rand.NewPCG(cfg.Dialogue.Seed, cfg.Dialogue.Seed^0x9e3779b97f4a7c15))
		opts = append(opts, dialogue.WithRand(rnd))
	} else {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if cfg.Dialogue.ContentPath != "" {
		content, err := dialogue.LoadContent(cfg.Dialogue.ContentPath)
		if err != nil {
			return nil, fmt.Errorf("load dialogue content: %w", err)
		}
		opts = append(opts, dialogue.WithContent(content))
	}

	catalog, err := recommend.LoadCatalog(cfg.Dialogue.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load sound catalog: %w", err)
	}
	opts = append(opts, dialogue.WithRecommender(recommend.NewContentRecommender(catalog, rand.New(rand.NewPCG(rnd.Uint64(), rnd.Uint64())))))

	return dialogue.New(opts...)
}

// newHistoryUploader stores history locally and, when configured, posts it to
// the telemetry collector as well.
func newHistoryUploader(cfg *config.Config, repo store.Repository, log *slog.Logger) *history.Uploader {
	sinks := history.Fanout{history.NewRepositorySink(repo)}
	if cfg.TelemetryEnabled() {
		sinks = append(sinks, history.NewHTTPSink(cfg.Telemetry.URL, cfg.Telemetry.Path, cfg.Telemetry.Timeout))
		slog.Info("History telemetry enabled", "url", cfg.Telemetry.URL, "path", cfg.Telemetry.Path)
	}
	return history.NewUploader(sinks, history.UploaderConfig{
		QueueSize: cfg.Telemetry.QueueSize,
		Timeout:   cfg.Telemetry.Timeout,
		UI:        cfg.Telemetry.UI,
		Username: func(project string) string {
			userID, _, _ := domain.SplitProjectKey(project)
			return identity.DisplayName(userID)
		},
	}, log)
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" || cfg.IsDevelopment() {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
