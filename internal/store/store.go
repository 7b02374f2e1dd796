// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/cadence/internal/domain"
	"github.com/ashureev/cadence/internal/history"
)

// Repository defines the interface for persisting users, projects and
// dialogue history.
type Repository interface {
	// GetUser retrieves a user by their user ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// GetProject retrieves a project of a user, or nil when there is none.
	GetProject(ctx context.Context, userID, name string) (*domain.Project, error)

	// UpsertProject creates or updates a project record.
	UpsertProject(ctx context.Context, project *domain.Project) error

	// ListProjects returns a user's projects, most recently active first.
	ListProjects(ctx context.Context, userID string) ([]*domain.Project, error)

	// GetIdleProjects returns projects inactive for longer than ttl.
	GetIdleProjects(ctx context.Context, ttl time.Duration) ([]*domain.Project, error)

	// AppendHistory stores a dialogue history record.
	AppendHistory(ctx context.Context, rec history.Record) error

	// ListHistory returns up to limit records of a project key, oldest first.
	ListHistory(ctx context.Context, project string, limit int) ([]history.Record, error)

	// PruneHistory removes records older than the retention period.
	PruneHistory(ctx context.Context, retain time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

var _ history.Appender = Repository(nil)
