// Package notification delivers workflow events to an external webhook.
// Delivery is best effort: approval transitions never fail because a
// notification could not be sent.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/legalworks/docflow/internal/application/port"
)

// Config holds webhook sink configuration
type Config struct {
	WebhookURL string
	Timeout    time.Duration
}

// WebhookSink implements port.NotificationSink by POSTing JSON payloads.
// With no URL configured it degrades to log-only delivery, which keeps
// development setups working without a receiver.
type WebhookSink struct {
	url    string
	http   *http.Client
	logger *zap.Logger
}

// NewWebhookSink creates a new webhook notification sink
func NewWebhookSink(cfg Config, logger *zap.Logger) *WebhookSink {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:    cfg.WebhookURL,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type webhookMessage struct {
	Recipient string                 `json:"recipient"`
	EventKind string                 `json:"event_kind"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	SentAt    string                 `json:"sent_at"`
}

// Notify implements port.NotificationSink
func (s *WebhookSink) Notify(ctx context.Context, recipient string, eventKind string, payload map[string]interface{}) error {
	if s.url == "" {
		s.logger.Info("Notification (log-only mode)",
			zap.String("recipient", recipient),
			zap.String("event_kind", eventKind))
		return nil
	}

	msg := webhookMessage{
		Recipient: recipient,
		EventKind: eventKind,
		Payload:   payload,
		SentAt:    time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook status %d", resp.StatusCode)
	}

	s.logger.Debug("Notification delivered",
		zap.String("recipient", recipient),
		zap.String("event_kind", eventKind))
	return nil
}

// Verify interface compliance
var _ port.NotificationSink = (*WebhookSink)(nil)
