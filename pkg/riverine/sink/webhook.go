package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
)

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// Webhook posts event batches as JSON arrays to a remote HTTP endpoint.
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhook builds a webhook sink. URL is required; a zero timeout
// defaults to 5s.
func NewWebhook(cfg WebhookConfig) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook sink: URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// webhookEvent is the JSON row shape posted to the endpoint. TTL is in
// seconds.
type webhookEvent struct {
	ID          string    `json:"id,omitempty"`
	Host        string    `json:"host,omitempty"`
	Service     string    `json:"service"`
	State       string    `json:"state,omitempty"`
	Description string    `json:"description,omitempty"`
	Metric      *float64  `json:"metric,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	TTL         float64   `json:"ttl,omitempty"`
	Time        time.Time `json:"time"`
}

// Send posts one batch.
func (w *Webhook) Send(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]webhookEvent, len(events))
	for i, e := range events {
		rows[i] = webhookEvent{
			ID:          e.ID,
			Host:        e.Host,
			Service:     e.Service,
			State:       e.State,
			Description: e.Description,
			Metric:      e.Metric,
			Tags:        e.Tags,
			TTL:         e.TTL.Seconds(),
			Time:        e.Time,
		}
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("webhook sink: marshal events: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook sink: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook sink: post: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook sink: post failed with status %s", resp.Status)
	}
	return nil
}

// Close implements Sink.
func (w *Webhook) Close() error {
	return nil
}
