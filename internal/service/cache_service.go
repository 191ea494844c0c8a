package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/campushq/classroom-api/pkg/config"
	appErrors "github.com/campushq/classroom-api/pkg/errors"
)

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService fronts the Redis-backed cache for read-side listings. A nil
// *CacheService is valid and behaves as a disabled cache, so callers never
// branch on availability.
type CacheService struct {
	store   cacheStore
	cfg     config.CacheConfig
	metrics *MetricsService
	logger  *zap.Logger
}

// NewCacheService constructs CacheService.
func NewCacheService(store cacheStore, cfg config.CacheConfig, metrics *MetricsService, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{store: store, cfg: cfg, metrics: metrics, logger: logger}
}

// Enabled reports whether reads and writes reach Redis.
func (s *CacheService) Enabled() bool {
	return s != nil && s.cfg.Enabled && s.store != nil
}

// LectureTTL is the expiry for cached lecture listings.
func (s *CacheService) LectureTTL() time.Duration {
	if s == nil {
		return 0
	}
	return s.cfg.LiveTTL
}

// ResourceTTL is the expiry for cached resource listings.
func (s *CacheService) ResourceTTL() time.Duration {
	if s == nil {
		return 0
	}
	return s.cfg.ResourceTTL
}

// Get reads a cached value into dest. It reports whether the key was found;
// a disabled cache always misses.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}

	if err := s.store.Get(ctx, key, dest); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			s.metrics.RecordCacheOperation("get", "miss")
			return false, nil
		}
		s.metrics.RecordCacheOperation("get", "error")
		return false, err
	}

	s.metrics.RecordCacheOperation("get", "hit")
	return true, nil
}

// Set stores a value under key. A ttl of zero falls back to the lecture TTL.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.cfg.LiveTTL
	}

	if err := s.store.Set(ctx, key, value, ttl); err != nil {
		s.metrics.RecordCacheOperation("set", "error")
		return err
	}

	s.metrics.RecordCacheOperation("set", "ok")
	return nil
}

// Invalidate removes all keys matching the pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}

	if err := s.store.DeleteByPattern(ctx, pattern); err != nil {
		s.metrics.RecordCacheOperation("invalidate", "error")
		return err
	}

	s.metrics.RecordCacheOperation("invalidate", "ok")
	return nil
}
