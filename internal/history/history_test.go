package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(E("34", map[string]string{"SUGGESTION": "200"}))
	require.NoError(t, err)
	assert.JSONEq(t, `["34", {"SUGGESTION": "200"}]`, string(data))

	var e Entry
	require.NoError(t, json.Unmarshal([]byte(`[12, "x"]`), &e))
	assert.Equal(t, "12", e.Label)
	assert.Equal(t, []any{"x"}, e.Args)
	assert.Error(t, json.Unmarshal([]byte(`[]`), &e))
}

func TestHTTPSinkPostsForm(t *testing.T) {
	t.Parallel()

	var got http.Header
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_ = r.ParseForm()
		form = r.PostForm
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL+"/", "/studies/caihistory", time.Second)
	rec := NewRecord("ada", "song.py", E(LabelCompileSuccess), "print(1)", "CAI")
	require.NoError(t, sink.Post(context.Background(), rec))
	assert.Equal(t, "application/x-www-form-urlencoded", got.Get("Content-Type"))
	assert.Equal(t, []string{"ada"}, form["username"])
	assert.Equal(t, []string{`["Successful Compilation"]`}, form["node"])
	assert.Equal(t, []string{"print(1)"}, form["source"])
}

func TestHTTPSinkReportsStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewHTTPSink(srv.URL, "x", time.Second).Post(context.Background(), NewRecord("", "p", E("1"), "", ""))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "500"))
}

type memorySink struct {
	mu   sync.Mutex
	recs []Record
}

func (m *memorySink) Post(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memorySink) all() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.recs...)
}

func TestFanoutJoinsErrors(t *testing.T) {
	t.Parallel()

	mem := &memorySink{}
	failing := SinkFunc(func(context.Context, Record) error { return errors.New("down") })
	err := Fanout{mem, failing}.Post(context.Background(), NewRecord("", "p", E("1"), "", ""))
	require.Error(t, err)
	assert.Len(t, mem.all(), 1)
}

func TestUploaderDeliversAndSkipsStartNode(t *testing.T) {
	t.Parallel()

	mem := &memorySink{}
	u := NewUploader(mem, UploaderConfig{
		QueueSize: 8,
		UI:        "CAI",
		Username:  func(project string) string { return strings.SplitN(project, ":", 2)[0] },
	}, nil)
	u.Publish("ada:song.py", E(LabelStartNode), "")
	u.Publish("ada:song.py", E("34"), "")
	u.Publish("ada:song.py", E(LabelCompileSuccess), "fitMedia()")
	require.NoError(t, u.Close())
	u.Publish("ada:song.py", E("35"), "")

	recs := mem.all()
	require.Len(t, recs, 2)
	assert.Equal(t, "ada", recs[0].Username)
	assert.Equal(t, "34", recs[0].Node.Label)
	assert.Equal(t, "CAI", recs[1].UI)
	assert.NotEmpty(t, recs[1].ID)
	assert.Zero(t, u.Dropped())
}

type blockingSink struct {
	release chan struct{}
}

func (b blockingSink) Post(ctx context.Context, _ Record) error {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

func TestUploaderDropsWhenFull(t *testing.T) {
	t.Parallel()

	sink := blockingSink{release: make(chan struct{})}
	u := NewUploader(sink, UploaderConfig{QueueSize: 1, Timeout: time.Second}, nil)
	for range 5 {
		u.Publish("p", E("1"), "")
	}
	close(sink.release)
	require.NoError(t, u.Close())
	assert.GreaterOrEqual(t, u.Dropped(), int64(3))
}

type fakeAppender struct {
	got []Record
}

func (f *fakeAppender) AppendHistory(_ context.Context, rec Record) error {
	f.got = append(f.got, rec)
	return nil
}

func TestRepositorySink(t *testing.T) {
	t.Parallel()

	repo := &fakeAppender{}
	require.NoError(t, NewRepositorySink(repo).Post(context.Background(), NewRecord("a", "p", E("1"), "", "")))
	assert.Len(t, repo.got, 1)
}
