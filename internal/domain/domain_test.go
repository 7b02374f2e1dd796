package domain

import (
	"testing"
	"time"
)

func TestProjectKeyRoundTrip(t *testing.T) {
	key := ProjectKey("anon_1", "beats:v2.py")
	if key != "anon_1:beats:v2.py" {
		t.Fatalf("unexpected key %q", key)
	}
	user, name, ok := SplitProjectKey(key)
	if !ok || user != "anon_1" || name != "beats:v2.py" {
		t.Fatalf("SplitProjectKey = %q %q %v", user, name, ok)
	}
	if _, _, ok := SplitProjectKey("nokey"); ok {
		t.Fatal("expected a key without a colon to fail")
	}
}

func TestProjectRecordRun(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := &Project{UserID: "u", Name: "song.py", LastActiveAt: start}

	p.RecordRun(true, start.Add(time.Minute))
	p.RecordRun(false, start.Add(2*time.Minute))
	if p.RunCount != 1 || p.ErrorCount != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", p.RunCount, p.ErrorCount)
	}
	if p.Expired(time.Hour, start.Add(30*time.Minute)) {
		t.Error("project should not be expired yet")
	}
	if !p.Expired(time.Hour, start.Add(3*time.Hour)) {
		t.Error("project should be expired")
	}
}

func TestUserIdleFor(t *testing.T) {
	now := time.Now()
	u := &User{LastSeenAt: now.Add(-time.Minute)}
	if got := u.IdleFor(now); got != time.Minute {
		t.Errorf("IdleFor = %v, want 1m", got)
	}
	u.LastSeenAt = now.Add(time.Minute)
	if got := u.IdleFor(now); got != 0 {
		t.Errorf("IdleFor = %v, want 0 for a future timestamp", got)
	}
}
