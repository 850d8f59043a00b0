package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wes-dispatch/wes-dispatch/internal/abstractions"
	"github.com/wes-dispatch/wes-dispatch/internal/config"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

const (
	DefaultWebhookTimeout = 10 * time.Second
	DefaultRetries        = 3
)

// WebhookSender posts run events as JSON to a configured URL.
// Transient failures are retried with exponential backoff.
type WebhookSender struct {
	config config.WebhookConfig
	client *http.Client
}

func NewWebhookSender(cfg config.WebhookConfig) (*WebhookSender, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook event sender requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWebhookTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	return &WebhookSender{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (s *WebhookSender) Name() string {
	return "webhook"
}

// Send posts the event. 5xx responses and network errors are retried,
// 4xx responses fail immediately.
func (s *WebhookSender) Send(ctx context.Context, event *api.RunEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	var lastErr error
	attempts := 1 + s.config.Retries
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("webhook: context canceled: %w", err)
		}
		if i > 0 {
			if err := backoff(ctx, i); err != nil {
				return fmt.Errorf("webhook: context canceled during backoff: %w", err)
			}
		}

		lastErr = s.doRequest(ctx, body)
		if lastErr == nil {
			return nil
		}

		var statusErr *StatusError
		if errors.As(lastErr, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 {
			return fmt.Errorf("webhook: non-retriable error: %w", lastErr)
		}
	}
	return fmt.Errorf("webhook: failed after %d attempts: %w", attempts, lastErr)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

func (s *WebhookSender) doRequest(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	// drain the body so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

func (s *WebhookSender) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// backoff waits 500ms, 1s, 2s, ... before the given retry attempt.
func backoff(ctx context.Context, attempt int) error {
	wait := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

var _ abstractions.EventSender = (*WebhookSender)(nil)
