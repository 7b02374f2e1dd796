package agent

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/cadence/internal/diagnosis"
	"github.com/ashureev/cadence/internal/dialogue"
	"github.com/ashureev/cadence/internal/domain"
	"github.com/ashureev/cadence/internal/history"
	"github.com/ashureev/cadence/internal/store"
	"github.com/ashureev/cadence/internal/utterance"
)

var testCaller = Caller{UserID: "u1", SessionID: "s1", RequestID: "r1", Channel: "test"}

// repoPublisher stores history synchronously so tests can read it back.
type repoPublisher struct {
	repo store.Repository
}

func (p repoPublisher) Publish(project string, e history.Entry, source string) {
	_ = p.repo.AppendHistory(context.Background(), history.NewRecord("u1", project, e, source, "CAI"))
}

type testEnv struct {
	repo    store.Repository
	engine  *dialogue.Engine
	hub     *Hub
	service *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	engine, err := dialogue.New(
		dialogue.WithRand(rand.New(rand.NewPCG(7, 11))),
		dialogue.WithPublisher(repoPublisher{repo: repo}),
	)
	if err != nil {
		t.Fatalf("dialogue.New failed: %v", err)
	}
	hub := NewHub(nil)
	return &testEnv{
		repo:    repo,
		engine:  engine,
		hub:     hub,
		service: NewService(engine, repo, nil, hub, nil),
	}
}

func (env *testEnv) activate(t *testing.T, name string) {
	t.Helper()
	if _, err := env.service.Activate(context.Background(), testCaller, name, ""); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
}

func TestActivateInfersLanguageAndPersists(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.service.Activate(ctx, testCaller, "beat.js", "")
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if p.Language != "javascript" {
		t.Fatalf("expected javascript, got %q", p.Language)
	}

	stored, err := env.repo.GetProject(ctx, "u1", "beat.js")
	if err != nil || stored == nil {
		t.Fatalf("project not stored: %v", err)
	}
	view, err := env.service.State(testCaller, "beat.js")
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if view.Project != domain.ProjectKey("u1", "beat.js") {
		t.Fatalf("unexpected project key %q", view.Project)
	}

	if _, err := env.service.Activate(ctx, testCaller, "x.py", "cobol"); err == nil {
		t.Fatal("expected unknown language to fail")
	}
}

func TestDialogueRepliesAndBroadcasts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.activate(t, "song.py")
	tab := &fakeConn{}
	env.hub.Register(domain.ProjectKey("u1", "song.py"), "tab", tab)

	reply, err := env.service.Dialogue(context.Background(), testCaller, "song.py", DialogueRequest{Input: "Chat with CAI"})
	if err != nil {
		t.Fatalf("Dialogue failed: %v", err)
	}
	if got := utterance.JoinText(reply.Segments); got != env.engine.Content().Greeting.First {
		t.Fatalf("unexpected greeting %q", got)
	}
	if len(reply.Buttons) != 2 || reply.Buttons[0].Label != "okay" {
		t.Fatalf("unexpected buttons %+v", reply.Buttons)
	}

	evs := tab.events(t)
	if len(evs) != 1 || evs[0].Type != EventReply || evs[0].Reply == nil {
		t.Fatalf("expected one reply event, got %+v", evs)
	}
	if evs[0].Project != "song.py" {
		t.Fatalf("unexpected event project %q", evs[0].Project)
	}

	view, err := env.service.State(testCaller, "song.py")
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if !view.Interacted {
		t.Fatal("typing to the agent should engage the student")
	}
}

func TestDialogueBeforeActivate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, err := env.service.Dialogue(context.Background(), testCaller, "song.py", DialogueRequest{Input: "suggest"})
	if !errors.Is(err, dialogue.ErrProjectNotStarted) {
		t.Fatalf("expected ErrProjectNotStarted, got %v", err)
	}
	if !isClientError(err) {
		t.Fatal("not started should be a client error")
	}
}

func TestNextWithoutNodeIsSilent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.activate(t, "song.py")
	tab := &fakeConn{}
	env.hub.Register(domain.ProjectKey("u1", "song.py"), "tab", tab)

	reply, err := env.service.Next(context.Background(), testCaller, "song.py", NextRequest{})
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if !reply.Silent() {
		t.Fatalf("expected silent reply, got %+v", reply)
	}
	if len(tab.events(t)) != 0 {
		t.Fatal("silent replies are not broadcast")
	}
}

func TestCompileErrorOpensErrorConversationOnlyWhenEngaged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := "from earsketch import *\npint(\"hello\")\n"
	req := CompileErrorRequest{
		Error:  diagnosis.ParseRuntimeError("NameError: name 'pint' is not defined on line 2", 0),
		Source: src,
	}

	quiet := newTestEnv(t)
	quiet.activate(t, "song.py")
	resp, err := quiet.service.CompileError(ctx, testCaller, "song.py", req)
	if err != nil {
		t.Fatalf("CompileError failed: %v", err)
	}
	if resp.Status != dialogue.StatusNewError {
		t.Fatalf("expected new error status, got %q", resp.Status)
	}
	if !resp.Reply.Silent() {
		t.Fatal("an unengaged student should not be interrupted")
	}

	engaged := newTestEnv(t)
	engaged.activate(t, "song.py")
	if err := engaged.service.Interact(testCaller, "song.py", true); err != nil {
		t.Fatalf("Interact failed: %v", err)
	}
	resp, err = engaged.service.CompileError(ctx, testCaller, "song.py", req)
	if err != nil {
		t.Fatalf("CompileError failed: %v", err)
	}
	if resp.Reply.Silent() {
		t.Fatal("an engaged student should hear about a new error")
	}
	if !resp.Reply.Waiting {
		t.Fatal("the error conversation waits for a fix")
	}

	p, err := engaged.repo.GetProject(ctx, "u1", "song.py")
	if err != nil || p == nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if p.RunCount != 0 || p.ErrorCount != 1 {
		t.Fatalf("unexpected run counts %d/%d", p.RunCount, p.ErrorCount)
	}
}

func TestCompileSuccessCountsRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.activate(t, "song.py")

	reply, err := env.service.CompileSuccess(ctx, testCaller, "song.py", CompileSuccessRequest{Source: "from earsketch import *\n"})
	if err != nil {
		t.Fatalf("CompileSuccess failed: %v", err)
	}
	if !reply.Silent() {
		t.Fatal("a run without engagement is silent")
	}
	p, err := env.repo.GetProject(ctx, "u1", "song.py")
	if err != nil || p == nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if p.RunCount != 1 || p.ErrorCount != 0 {
		t.Fatalf("unexpected run counts %d/%d", p.RunCount, p.ErrorCount)
	}
}

func TestHistoryIsScopedToProject(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.activate(t, "song.py")
	env.activate(t, "other.py")

	if _, err := env.service.Dialogue(ctx, testCaller, "song.py", DialogueRequest{Input: "wrapup"}); err != nil {
		t.Fatalf("Dialogue failed: %v", err)
	}

	records, err := env.service.History(ctx, testCaller, "song.py", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("expected history for the project")
	}
	for _, rec := range records {
		if rec.Project != domain.ProjectKey("u1", "song.py") {
			t.Fatalf("record of another project: %q", rec.Project)
		}
	}

	other, err := env.service.History(ctx, testCaller, "other.py", 1)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(other) > 1 {
		t.Fatalf("limit not applied: %d records", len(other))
	}
}

func TestSweepClosesIdleProjects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.service.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	env.activate(t, "old.py")
	env.service.now = time.Now
	env.activate(t, "fresh.py")

	tab := &fakeConn{}
	env.hub.Register(domain.ProjectKey("u1", "old.py"), "tab", tab)

	sweepIdleProjects(ctx, env.repo, env.engine, env.hub, 2*time.Hour, 0)

	if _, err := env.service.State(testCaller, "old.py"); !errors.Is(err, dialogue.ErrProjectNotStarted) {
		t.Fatalf("idle project should be closed, got %v", err)
	}
	if _, err := env.service.State(testCaller, "fresh.py"); err != nil {
		t.Fatalf("active project should stay open: %v", err)
	}
	if !tab.isClosed() {
		t.Fatal("live connections of an idle project should be closed")
	}
}
