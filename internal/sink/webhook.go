package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hazyhaar/webaoi/locator"
	"github.com/hazyhaar/webaoi/relay"
)

// errPermanent marks responses a retry cannot fix.
var errPermanent = errors.New("webhook: permanent failure")

// Webhook POSTs JSON to a URL. Definitions are posted at once; events are
// batched, since a scrolling operator emits them in bursts. Server errors and
// 429 are retried with exponential backoff, other 4xx are not.
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	batch      int
	logger     *slog.Logger

	mu      sync.Mutex
	pending []eventLine
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookBackoff sets the first retry delay, doubled on each attempt.
// Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookBatch sets how many events are posted together. Default: 50.
// 1 posts every event on its own.
func WithWebhookBatch(n int) WebhookOption {
	return func(w *Webhook) {
		if n > 0 {
			w.batch = n
		}
	}
}

func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a Webhook sink targeting url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		batch:      50,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// SaveDefinitions flushes pending events, then posts the document.
func (w *Webhook) SaveDefinitions(ctx context.Context, doc *locator.Document) error {
	if err := w.Flush(ctx); err != nil {
		return err
	}
	return w.post(ctx, envelope{Type: "definitions", Data: doc})
}

// SendEvent queues ev and posts the batch once it is full.
func (w *Webhook) SendEvent(ctx context.Context, ev relay.Event) error {
	w.mu.Lock()
	w.pending = append(w.pending, eventLine{Event: ev.String(), Timestamp: ev.Timestamp.UnixNano()})
	full := len(w.pending) >= w.batch
	w.mu.Unlock()
	if !full {
		return nil
	}
	return w.Flush(ctx)
}

// Flush posts queued events as one "events" envelope. A failed batch is
// dropped so a dead endpoint cannot grow the queue without bound.
func (w *Webhook) Flush(ctx context.Context) error {
	w.mu.Lock()
	lines := w.pending
	w.pending = nil
	w.mu.Unlock()
	if len(lines) == 0 {
		return nil
	}
	if err := w.post(ctx, envelope{Type: "events", Data: lines}); err != nil {
		w.logger.Warn("webhook: events dropped", "count", len(lines), "error", err)
		return err
	}
	return nil
}

// Close posts whatever is still queued.
func (w *Webhook) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return w.Flush(ctx)
}

func (w *Webhook) post(ctx context.Context, env envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(w.backoff << uint(attempt-1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = w.send(ctx, body)
		if lastErr == nil || errors.Is(lastErr, errPermanent) {
			return lastErr
		}
		w.logger.Warn("webhook: post failed", "type", env.Type, "attempt", attempt+1, "error", lastErr)
	}
	return fmt.Errorf("webhook: all retries exhausted: %w", lastErr)
}

func (w *Webhook) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: new request: %v", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("webhook: status %d", resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", errPermanent, resp.StatusCode)
	}
}
