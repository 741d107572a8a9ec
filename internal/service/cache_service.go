package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Caring-data/documenso-sub000/internal/dto"
	appErrors "github.com/Caring-data/documenso-sub000/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DocumentCache keeps assembled document responses in Redis so repeated
// reads of a document under active signing skip three queries. Entries
// are invalidated on every mutation, the TTL only bounds staleness when
// an invalidation is missed.
type DocumentCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewDocumentCache constructs a document cache.
func NewDocumentCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *DocumentCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (c *DocumentCache) Enabled() bool {
	return c != nil && c.enabled && c.repo != nil
}

func documentCacheKey(documentID string) string {
	return "document:" + documentID
}

// Get returns the cached response for a document, or nil on a miss.
// Cache failures degrade to a miss.
func (c *DocumentCache) Get(ctx context.Context, documentID string) *dto.DocumentResponse {
	if !c.Enabled() {
		return nil
	}
	var resp dto.DocumentResponse
	err := c.repo.Get(ctx, documentCacheKey(documentID), &resp)
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Sugar().Warnw("document cache get failed", "document_id", documentID, "error", err)
		}
		c.metrics.ObserveCacheLookup(false)
		return nil
	}
	c.metrics.ObserveCacheLookup(true)
	return &resp
}

// Set stores the assembled response. Failures are logged, a cold cache
// only costs the next read.
func (c *DocumentCache) Set(ctx context.Context, documentID string, resp *dto.DocumentResponse) {
	if !c.Enabled() || resp == nil {
		return
	}
	if err := c.repo.Set(ctx, documentCacheKey(documentID), resp, c.ttl); err != nil {
		c.logger.Sugar().Warnw("document cache set failed", "document_id", documentID, "error", err)
	}
}

// Invalidate drops the cached response for a document.
func (c *DocumentCache) Invalidate(ctx context.Context, documentID string) {
	if !c.Enabled() {
		return
	}
	if err := c.repo.DeleteByPattern(ctx, documentCacheKey(documentID)); err != nil {
		c.logger.Sugar().Warnw("document cache invalidate failed", "document_id", documentID, "error", err)
	}
}
