package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/dombind/bindable/event"
)

// errPermanent marks a webhook response that retrying cannot fix.
var errPermanent = errors.New("webhook: permanent failure")

// Webhook POSTs each event as a JSON envelope. Network errors, 429 and 5xx
// responses are retried with exponential backoff; other 4xx responses fail
// at once.
type Webhook struct {
	url     string
	client  *http.Client
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets how many times a failed delivery is retried. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.retries = n }
}

// WithWebhookBackoff sets the delay before the first retry; each further
// retry doubles it. Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookClient sets the HTTP client. Default: 10s timeout.
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWebhook creates a Webhook sink targeting url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		retries: 3,
		backoff: time.Second,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Webhook) SendBound(ctx context.Context, ev event.Bound) error {
	return w.deliver(ctx, event.Envelope{Type: event.TypeBound, Data: ev})
}

func (w *Webhook) SendScan(ctx context.Context, ev event.Scan) error {
	return w.deliver(ctx, event.Envelope{Type: event.TypeScan, Data: ev})
}

func (w *Webhook) Close() error { return nil }

func (w *Webhook) deliver(ctx context.Context, env event.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("webhook: marshal %s: %w", env.Type, err)
	}

	delay := w.backoff
	for try := 0; ; try++ {
		err = w.post(ctx, body)
		if err == nil || errors.Is(err, errPermanent) {
			return err
		}
		if try == w.retries {
			return fmt.Errorf("webhook: giving up after %d attempts: %w", try+1, err)
		}
		w.logger.Warn("webhook: delivery failed, retrying",
			"event", env.Type, "attempt", try+1, "retry_in", delay, "error", err)

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
		delay *= 2
	}
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("webhook: status %d", code)
	default:
		return fmt.Errorf("%w: status %d", errPermanent, code)
	}
}
