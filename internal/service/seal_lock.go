package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sealLock deduplicates seal triggers across racing completions and
// processes. The row lock inside the completion transaction already
// decides the last recipient exactly once; the lock keeps retried jobs
// and replayed completions from enqueueing a second seal.
type sealLock interface {
	Acquire(ctx context.Context, documentID string) (bool, error)
	Release(ctx context.Context, documentID string)
}

// RedisSealLock implements sealLock with SETNX.
type RedisSealLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSealLock constructs the lock. A nil client always grants.
func NewRedisSealLock(client *redis.Client, ttl time.Duration) *RedisSealLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisSealLock{client: client, ttl: ttl}
}

func sealLockKey(documentID string) string {
	return fmt.Sprintf("seal-lock:%s", documentID)
}

// Acquire takes the lock, reporting false when another seal already holds it.
func (l *RedisSealLock) Acquire(ctx context.Context, documentID string) (bool, error) {
	if l.client == nil {
		return true, nil
	}
	ok, err := l.client.SetNX(ctx, sealLockKey(documentID), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire seal lock for %s: %w", documentID, err)
	}
	return ok, nil
}

// Release frees the lock so a failed seal can be retried sooner than the TTL.
func (l *RedisSealLock) Release(ctx context.Context, documentID string) {
	if l.client == nil {
		return
	}
	_ = l.client.Del(ctx, sealLockKey(documentID)).Err()
}
