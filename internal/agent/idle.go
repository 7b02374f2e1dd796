package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/cadence/internal/store"
)

const idleWorkerInterval = 5 * time.Minute

// ProjectCloser drops the in-memory conversation of a project key.
type ProjectCloser interface {
	CloseProject(project string) bool
}

// StartIdleWorker runs a background goroutine that periodically drops the
// conversations of projects idle for longer than ttl, closes their live
// connections and prunes history older than retain.
func StartIdleWorker(ctx context.Context, repo store.Repository, engine ProjectCloser, hub *Hub, ttl, retain time.Duration) {
	ticker := time.NewTicker(idleWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Idle worker started", "interval", idleWorkerInterval, "ttl", ttl, "retain", retain)

		for {
			select {
			case <-ticker.C:
				sweepIdleProjects(ctx, repo, engine, hub, ttl, retain)
			case <-ctx.Done():
				slog.Info("Idle worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepIdleProjects(ctx context.Context, repo store.Repository, engine ProjectCloser, hub *Hub, ttl, retain time.Duration) {
	idle, err := repo.GetIdleProjects(ctx, ttl)
	if err != nil {
		slog.Error("Idle worker failed to get idle projects", "error", err)
		return
	}

	closed := 0
	for _, p := range idle {
		key := p.Key()
		if engine.CloseProject(key) {
			closed++
			slog.Info("Idle worker closed project", "user_id", p.UserID, "project", p.Name)
		}
		if hub != nil {
			hub.CloseProject(key)
		}
	}
	if closed > 0 {
		slog.Info("Idle worker sweep completed", "closed", closed)
	}

	if retain <= 0 {
		return
	}
	if deleted, err := repo.PruneHistory(ctx, retain); err != nil {
		slog.Error("Idle worker failed to prune history", "error", err)
	} else if deleted > 0 {
		slog.Info("Idle worker pruned history", "count", deleted)
	}
}
