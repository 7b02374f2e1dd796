package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/cadence/internal/domain"
	"github.com/ashureev/cadence/internal/history"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "db", "cadence.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	got, err := repo.GetUser(ctx, "anon_missing")
	if err != nil || got != nil {
		t.Fatalf("GetUser on missing user = %v, %v; want nil, nil", got, err)
	}

	now := time.Now().Truncate(time.Second)
	if err := repo.UpsertUser(ctx, &domain.User{
		UserID: "anon_1", Username: "anon-1", LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	later := now.Add(time.Hour)
	if err := repo.UpdateLastSeen(ctx, "anon_1", later); err != nil {
		t.Fatalf("UpdateLastSeen failed: %v", err)
	}

	got, err = repo.GetUser(ctx, "anon_1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Username != "anon-1" || !got.LastSeenAt.Equal(later) {
		t.Fatalf("unexpected user %+v", got)
	}
}

func TestProjects(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	old := time.Now().Add(-3 * time.Hour).Truncate(time.Second)
	fresh := time.Now().Truncate(time.Second)
	for _, p := range []*domain.Project{
		{UserID: "u1", Name: "old.py", Language: "python", LastActiveAt: old, CreatedAt: old},
		{UserID: "u1", Name: "new.js", Language: "javascript", LastActiveAt: fresh, CreatedAt: fresh},
		{UserID: "u2", Name: "other.py", Language: "python", LastActiveAt: fresh, CreatedAt: fresh},
	} {
		if err := repo.UpsertProject(ctx, p); err != nil {
			t.Fatalf("UpsertProject failed: %v", err)
		}
	}

	p, err := repo.GetProject(ctx, "u1", "old.py")
	if err != nil || p == nil {
		t.Fatalf("GetProject = %v, %v", p, err)
	}
	p.RecordRun(false, old)
	if err := repo.UpsertProject(ctx, p); err != nil {
		t.Fatalf("UpsertProject failed: %v", err)
	}
	p, _ = repo.GetProject(ctx, "u1", "old.py")
	if p.ErrorCount != 1 {
		t.Fatalf("ErrorCount = %d, want 1", p.ErrorCount)
	}

	list, err := repo.ListProjects(ctx, "u1")
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(list) != 2 || list[0].Name != "new.js" {
		t.Fatalf("unexpected project order: %+v", list)
	}

	idle, err := repo.GetIdleProjects(ctx, time.Hour)
	if err != nil {
		t.Fatalf("GetIdleProjects failed: %v", err)
	}
	if len(idle) != 1 || idle[0].Key() != "u1:old.py" {
		t.Fatalf("unexpected idle projects: %+v", idle)
	}

	missing, err := repo.GetProject(ctx, "u3", "none.py")
	if err != nil || missing != nil {
		t.Fatalf("GetProject on missing project = %v, %v", missing, err)
	}
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	entries := []history.Entry{
		history.E("1"),
		history.E(history.LabelCompileError, "NameError: name 'x' is not defined"),
		history.E("32", []any{"sound_rec", []string{"A", "B"}}),
	}
	for i, e := range entries {
		source := ""
		if i == 1 {
			source = "x = y"
		}
		if err := repo.AppendHistory(ctx, history.NewRecord("u1", "u1:song.py", e, source, "CAI")); err != nil {
			t.Fatalf("AppendHistory failed: %v", err)
		}
	}
	if err := repo.AppendHistory(ctx, history.NewRecord("u2", "u2:song.py", history.E("2"), "", "CAI")); err != nil {
		t.Fatalf("AppendHistory failed: %v", err)
	}

	recs, err := repo.ListHistory(ctx, "u1:song.py", 0)
	if err != nil {
		t.Fatalf("ListHistory failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].Node.Label != "1" || recs[1].Node.Label != history.LabelCompileError {
		t.Fatalf("records out of order: %+v", recs)
	}
	if recs[1].Source != "x = y" || recs[0].Source != "" {
		t.Fatalf("unexpected sources %q %q", recs[0].Source, recs[1].Source)
	}

	last, err := repo.ListHistory(ctx, "u1:song.py", 1)
	if err != nil {
		t.Fatalf("ListHistory failed: %v", err)
	}
	if len(last) != 1 || last[0].Node.Label != "32" {
		t.Fatalf("limit should keep the newest record: %+v", last)
	}

	deleted, err := repo.PruneHistory(ctx, -time.Minute)
	if err != nil {
		t.Fatalf("PruneHistory failed: %v", err)
	}
	if deleted != 4 {
		t.Fatalf("deleted = %d, want 4", deleted)
	}
}

func TestRepositorySinkStoresRecords(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	sink := history.NewRepositorySink(repo)

	if err := sink.Post(ctx, history.NewRecord("u1", "u1:a.py", history.E("5"), "", "CAI")); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	recs, err := repo.ListHistory(ctx, "u1:a.py", 10)
	if err != nil || len(recs) != 1 {
		t.Fatalf("ListHistory = %v, %v", recs, err)
	}
}
