package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sink receives history records.
type Sink interface {
	Post(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

// Post implements Sink.
func (f SinkFunc) Post(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// HTTPSink posts records to a collector as form values.
type HTTPSink struct {
	client *http.Client
	url    string
}

// NewHTTPSink posts to baseURL joined with path.
func NewHTTPSink(baseURL, path string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"),
	}
}

// Post implements Sink.
func (s *HTTPSink) Post(ctx context.Context, rec Record) error {
	node, err := json.Marshal(rec.Node)
	if err != nil {
		return fmt.Errorf("encode history node: %w", err)
	}
	form := url.Values{
		"username": {rec.Username},
		"project":  {rec.Project},
		"node":     {string(node)},
		"ui":       {rec.UI},
	}
	if rec.Source != "" {
		form.Set("source", rec.Source)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build history request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post history: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post history: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Appender persists records.
type Appender interface {
	AppendHistory(ctx context.Context, rec Record) error
}

// RepositorySink stores records through an Appender.
type RepositorySink struct {
	repo Appender
}

// NewRepositorySink wraps repo.
func NewRepositorySink(repo Appender) *RepositorySink {
	return &RepositorySink{repo: repo}
}

// Post implements Sink.
func (s *RepositorySink) Post(ctx context.Context, rec Record) error {
	if err := s.repo.AppendHistory(ctx, rec); err != nil {
		return fmt.Errorf("store history: %w", err)
	}
	return nil
}

// Fanout posts every record to each sink and joins their errors.
type Fanout []Sink

// Post implements Sink.
func (f Fanout) Post(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range f {
		if err := s.Post(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
