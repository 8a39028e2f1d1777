package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"jarcode/internal/common/cache"
)

const (
	statusKeyPrefix  = "submission:status:"
	defaultStatusTTL = 24 * time.Hour
)

// StatusRepository mirrors the live submission status into Redis so clients
// can poll cheaply while a run is in flight. The database row stays the
// source of truth; a missing mirror entry is not an error.
type StatusRepository interface {
	Set(ctx context.Context, submissionID int64, status string) error
	Get(ctx context.Context, submissionID int64) (string, error)
}

type RedisStatusRepository struct {
	cache cache.BasicOps
	ttl   time.Duration
}

func NewStatusRepository(cacheClient cache.BasicOps) (*RedisStatusRepository, error) {
	return NewStatusRepositoryWithTTL(cacheClient, defaultStatusTTL)
}

func NewStatusRepositoryWithTTL(cacheClient cache.BasicOps, ttl time.Duration) (*RedisStatusRepository, error) {
	if cacheClient == nil {
		return nil, errors.New("cache client is required")
	}
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &RedisStatusRepository{cache: cacheClient, ttl: ttl}, nil
}

func (r *RedisStatusRepository) Set(ctx context.Context, submissionID int64, status string) error {
	return r.cache.Set(ctx, statusKey(submissionID), status, r.ttl)
}

// Get returns an empty string when no mirror entry exists.
func (r *RedisStatusRepository) Get(ctx context.Context, submissionID int64) (string, error) {
	return r.cache.Get(ctx, statusKey(submissionID))
}

func statusKey(submissionID int64) string {
	return statusKeyPrefix + strconv.FormatInt(submissionID, 10)
}
