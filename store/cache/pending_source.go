package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-approvals/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

// PendingCacheKey is the single cache entry holding the unfiltered pending
// list. Filters are applied after the cache.
const PendingCacheKey = "go-approvals::pending::v1"

type CachedPendingSource struct {
	base  core.PendingSource
	cache repositorycache.CacheService
}

func NewCachedPendingSource(base core.PendingSource, cacheService repositorycache.CacheService) (*CachedPendingSource, error) {
	if base == nil {
		return nil, fmt.Errorf("cache: base pending source is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("cache: pending cache service is required")
	}
	return &CachedPendingSource{base: base, cache: cacheService}, nil
}

// NewPendingCacheService builds an in-memory cache service with ttl.
func NewPendingCacheService(ttl time.Duration) (repositorycache.CacheService, error) {
	config := repositorycache.DefaultConfig()
	if ttl > 0 {
		config.TTL = ttl
	}
	return repositorycache.NewCacheService(config)
}

func (s *CachedPendingSource) ListPending(ctx context.Context) ([]core.PendingApproval, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("cache: cached pending source is not configured")
	}
	items, err := repositorycache.GetOrFetch(ctx, s.cache, PendingCacheKey, func(ctx context.Context) ([]core.PendingApproval, error) {
		fetched, fetchErr := s.base.ListPending(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return clonePending(fetched), nil
	})
	if err != nil {
		return nil, err
	}
	return clonePending(items), nil
}

// Invalidate drops the cached list so the next read goes upstream.
func (s *CachedPendingSource) Invalidate(ctx context.Context) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("cache: cached pending source is not configured")
	}
	return s.cache.Delete(ctx, PendingCacheKey)
}

func clonePending(items []core.PendingApproval) []core.PendingApproval {
	out := make([]core.PendingApproval, len(items))
	copy(out, items)
	return out
}

var (
	_ core.PendingSource      = (*CachedPendingSource)(nil)
	_ core.PendingInvalidator = (*CachedPendingSource)(nil)
)
