package history

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Publisher accepts transition entries from the dialogue engine.
type Publisher interface {
	Publish(project string, e Entry, source string)
}

// Discard is a Publisher that drops everything.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(string, Entry, string) {}

// UploaderConfig configures an Uploader.
type UploaderConfig struct {
	QueueSize int
	Timeout   time.Duration
	UI        string
	// Username resolves the owner of a project key.
	Username func(project string) string
}

// Uploader turns entries into records and posts them to a sink from a
// background goroutine. Records are dropped when the queue is full.
type Uploader struct {
	sink    Sink
	cfg     UploaderConfig
	log     *slog.Logger
	queue   chan Record
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewUploader starts the upload goroutine.
func NewUploader(sink Sink, cfg UploaderConfig, log *slog.Logger) *Uploader {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Username == nil {
		cfg.Username = func(string) string { return "" }
	}
	if log == nil {
		log = slog.Default()
	}
	u := &Uploader{
		sink:  sink,
		cfg:   cfg,
		log:   log,
		queue: make(chan Record, cfg.QueueSize),
	}
	u.wg.Add(1)
	go u.run()
	return u
}

// Publish implements Publisher. The conversation start marker is not uploaded.
func (u *Uploader) Publish(project string, e Entry, source string) {
	if e.Label == LabelStartNode {
		return
	}
	rec := NewRecord(u.cfg.Username(project), project, e, source, u.cfg.UI)

	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.closed {
		return
	}
	select {
	case u.queue <- rec:
	default:
		u.dropped.Add(1)
		u.log.Warn("history upload queue full, dropping record", "project", project, "label", e.Label)
	}
}

// Dropped returns how many records were discarded because the queue was full.
func (u *Uploader) Dropped() int64 {
	return u.dropped.Load()
}

// Close stops accepting records and waits for the queue to drain.
func (u *Uploader) Close() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil
	}
	u.closed = true
	close(u.queue)
	u.mu.Unlock()
	u.wg.Wait()
	return nil
}

func (u *Uploader) run() {
	defer u.wg.Done()
	for rec := range u.queue {
		ctx, cancel := context.WithTimeout(context.Background(), u.cfg.Timeout)
		if err := u.sink.Post(ctx, rec); err != nil {
			u.log.Warn("history upload failed", "project", rec.Project, "label", rec.Node.Label, "error", err)
		} else {
			u.log.Debug("history uploaded", "project", rec.Project, "label", rec.Node.Label)
		}
		cancel()
	}
}
