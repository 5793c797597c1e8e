package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lumahq/chainmesh/core"
)

// NoOp discards all events.
type NoOp struct{}

// Emit implements core.EventSink.
func (NoOp) Emit(context.Context, core.Event) error { return nil }

// HTTPSink POSTs each event as JSON to a fixed webhook URL. No retry: the
// engine treats delivery as best-effort.
type HTTPSink struct {
	url    string
	client *http.Client
}

// NewHTTPSink creates a sink posting to url. A nil client gets a default
// with a 10s timeout.
func NewHTTPSink(url string, client *http.Client) *HTTPSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSink{url: url, client: client}
}

// Emit implements core.EventSink.
func (s *HTTPSink) Emit(ctx context.Context, ev core.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("event sink returned %d", resp.StatusCode)
	}
	return nil
}

// Recorder captures emitted events in memory. Intended for tests.
type Recorder struct {
	mu     sync.Mutex
	events []core.Event

	// Err, when set, is returned from every Emit so tests can exercise
	// the swallow-on-failure path.
	Err error
}

// Emit implements core.EventSink.
func (r *Recorder) Emit(_ context.Context, ev core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Err
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Event, len(r.events))
	copy(out, r.events)
	return out
}
