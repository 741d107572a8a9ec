package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Caring-data/documenso-sub000/pkg/config"
)

// ForwardResult reports the outcome of a best-effort forwarding attempt.
// A failed forward never fails the seal; callers inspect and log it.
type ForwardResult struct {
	Attempted  bool
	Delivered  bool
	StatusCode int
	Err        error
}

// ForwardingService pushes sealed documents to the external records
// system.
type ForwardingService struct {
	enabled bool
	url     string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewForwardingService constructs the forwarding service.
func NewForwardingService(cfg config.ForwardingConfig, logger *zap.Logger) *ForwardingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ForwardingService{
		enabled: cfg.Enabled && cfg.URL != "",
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type forwardPayload struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	FileName   string `json:"fileName"`
	Document   string `json:"document"` // base64 sealed PDF
}

// Forward delivers the sealed bytes. Never returns an error; the result
// carries whatever went wrong.
func (s *ForwardingService) Forward(ctx context.Context, documentID, title string, sealed []byte) ForwardResult {
	if !s.enabled {
		return ForwardResult{}
	}

	body, err := json.Marshal(forwardPayload{
		DocumentID: documentID,
		Title:      title,
		FileName:   fmt.Sprintf("%s.pdf", documentID),
		Document:   base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return ForwardResult{Attempted: true, Err: fmt.Errorf("marshal forward payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return ForwardResult{Attempted: true, Err: fmt.Errorf("build forward request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Sugar().Warnw("document forwarding failed", "document_id", documentID, "error", err)
		return ForwardResult{Attempted: true, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	result := ForwardResult{Attempted: true, StatusCode: resp.StatusCode}
	if resp.StatusCode >= http.StatusBadRequest {
		result.Err = fmt.Errorf("records system returned %d", resp.StatusCode)
		s.logger.Sugar().Warnw("document forwarding rejected", "document_id", documentID, "status", resp.StatusCode)
		return result
	}
	result.Delivered = true
	return result
}
