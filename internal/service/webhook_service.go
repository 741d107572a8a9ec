package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Caring-data/documenso-sub000/pkg/config"
)

// Webhook event names emitted by the signing pipeline.
const (
	WebhookEventDocumentSigned    = "document.signed"
	WebhookEventDocumentCompleted = "document.completed"
	WebhookEventDocumentRejected  = "document.rejected"
)

// WebhookEvent is the JSON body posted to the configured endpoint.
type WebhookEvent struct {
	Event      string      `json:"event"`
	DocumentID string      `json:"documentId"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload,omitempty"`
}

// WebhookService posts lifecycle events to a configured endpoint, signing
// each body with an HMAC-SHA256 header. Delivery is best-effort; failures
// are logged and never fail the calling operation.
type WebhookService struct {
	url    string
	secret []byte
	client *http.Client
	logger *zap.Logger
}

// NewWebhookService constructs the webhook service. An empty URL disables
// delivery.
func NewWebhookService(cfg config.WebhookConfig, logger *zap.Logger) *WebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookService{
		url:    cfg.URL,
		secret: []byte(cfg.Secret),
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Enabled reports whether an endpoint is configured.
func (s *WebhookService) Enabled() bool {
	return s.url != ""
}

// Notify posts one event. The returned error is informational; callers
// log it and continue.
func (s *WebhookService) Notify(ctx context.Context, event, documentID string, payload interface{}) error {
	if !s.Enabled() {
		return nil
	}

	body, err := json.Marshal(WebhookEvent{
		Event:      event,
		DocumentID: documentID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", event)
	if len(s.secret) > 0 {
		mac := hmac.New(sha256.New, s.secret)
		_, _ = mac.Write(body)
		req.Header.Set("X-Webhook-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Sugar().Warnw("webhook delivery failed", "event", event, "document_id", documentID, "error", err)
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= http.StatusBadRequest {
		err := fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
		s.logger.Sugar().Warnw("webhook rejected", "event", event, "document_id", documentID, "status", resp.StatusCode)
		return err
	}
	return nil
}
