package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/cadence/internal/domain"
	"github.com/ashureev/cadence/internal/history"
	"github.com/ashureev/cadence/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeRetries   = 3
	writeBaseDelay = 50 * time.Millisecond
	maxHistoryRows = 5000
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		language TEXT NOT NULL,
		run_count INTEGER DEFAULT 0,
		error_count INTEGER DEFAULT 0,
		last_active_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, name)
	);
	CREATE INDEX IF NOT EXISTS idx_projects_active ON projects(last_active_at);

	CREATE TABLE IF NOT EXISTS dialogue_history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL,
		project TEXT NOT NULL,
		node_json TEXT NOT NULL,
		source TEXT,
		ui TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_project ON dialogue_history(project, seq);
	CREATE INDEX IF NOT EXISTS idx_history_created ON dialogue_history(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username, user.LastSeenAt.Unix(),
		user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}

	return nil
}

const projectColumns = `user_id, name, language, run_count, error_count, last_active_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var p domain.Project
	var lastActive, createdAt, updatedAt int64
	if err := row.Scan(
		&p.UserID, &p.Name, &p.Language, &p.RunCount, &p.ErrorCount,
		&lastActive, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	p.LastActiveAt = time.Unix(lastActive, 0)
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// GetProject retrieves a project of a user.
func (s *SQLiteStore) GetProject(ctx context.Context, userID, name string) (*domain.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? AND name = ?`, userID, name)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan project row: %w", err)
	}
	return p, nil
}

// UpsertProject creates or updates a project record.
func (s *SQLiteStore) UpsertProject(ctx context.Context, p *domain.Project) error {
	query := `
	INSERT INTO projects (` + projectColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, name) DO UPDATE SET
		language = excluded.language,
		run_count = excluded.run_count,
		error_count = excluded.error_count,
		last_active_at = excluded.last_active_at,
		updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, "upsert project", writeRetries, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			p.UserID, p.Name, p.Language, p.RunCount, p.ErrorCount,
			p.LastActiveAt.Unix(), p.CreatedAt.Unix(), time.Now().Unix(),
		)
		return err
	})
}

// ListProjects returns a user's projects, most recently active first.
func (s *SQLiteStore) ListProjects(ctx context.Context, userID string) ([]*domain.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY last_active_at DESC, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	return collectProjects(rows)
}

// GetIdleProjects returns projects inactive for longer than ttl.
func (s *SQLiteStore) GetIdleProjects(ctx context.Context, ttl time.Duration) ([]*domain.Project, error) {
	threshold := time.Now().Add(-ttl).Unix()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE last_active_at < ?`, threshold)
	if err != nil {
		return nil, fmt.Errorf("query idle projects: %w", err)
	}
	return collectProjects(rows)
}

func collectProjects(rows *sql.Rows) ([]*domain.Project, error) {
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close project rows", "error", closeErr)
		}
	}()

	var projects []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

// AppendHistory stores a dialogue history record. Busy database errors are
// retried with exponential backoff.
func (s *SQLiteStore) AppendHistory(ctx context.Context, rec history.Record) error {
	node, err := json.Marshal(rec.Node)
	if err != nil {
		return fmt.Errorf("encode history node: %w", err)
	}
	var source any
	if rec.Source != "" {
		source = rec.Source
	}

	query := `
	INSERT INTO dialogue_history (id, username, project, node_json, source, ui, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	return shared.RetryOnConflict(ctx, "append history", writeRetries, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			rec.ID, rec.Username, rec.Project, string(node), source, rec.UI, rec.CreatedAt.UnixMilli(),
		)
		return err
	})
}

// ListHistory returns up to limit records of a project key, oldest first.
func (s *SQLiteStore) ListHistory(ctx context.Context, project string, limit int) ([]history.Record, error) {
	if limit <= 0 || limit > maxHistoryRows {
		limit = maxHistoryRows
	}
	query := `
		SELECT id, username, project, node_json, source, ui, created_at FROM (
			SELECT seq, id, username, project, node_json, source, ui, created_at
			FROM dialogue_history WHERE project = ?
			ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, project, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close history rows", "error", closeErr)
		}
	}()

	records := []history.Record{}
	for rows.Next() {
		var rec history.Record
		var node string
		var source sql.NullString
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.Project, &node, &source, &rec.UI, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if err := json.Unmarshal([]byte(node), &rec.Node); err != nil {
			return nil, fmt.Errorf("decode history row %s: %w", rec.ID, err)
		}
		rec.Source = source.String
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

// PruneHistory removes records older than retain.
func (s *SQLiteStore) PruneHistory(ctx context.Context, retain time.Duration) (int64, error) {
	threshold := time.Now().Add(-retain).UnixMilli()
	var deleted int64
	err := shared.RetryOnConflict(ctx, "prune history", writeRetries, writeBaseDelay, func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM dialogue_history WHERE created_at < ?`, threshold)
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
