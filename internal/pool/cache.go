package pool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-sandwich-bot/internal/domain"
)

// Cache stores the latest snapshot per pool.
type Cache interface {
	// Get returns the cached snapshot of pool, ok=false if none.
	Get(ctx context.Context, pool string) (domain.PoolState, bool, error)
	// Put stores st unless a snapshot from a later slot is already cached.
	Put(ctx context.Context, st domain.PoolState) error
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]domain.PoolState
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]domain.PoolState)}
}

func (c *MemoryCache) Get(_ context.Context, pool string) (domain.PoolState, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.entries[pool]
	return st, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, st domain.PoolState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[st.Pool]; ok && cur.Slot > st.Slot {
		return nil
	}
	c.entries[st.Pool] = st
	return nil
}

// Fresh reports whether st may price a swap observed at slot: it must be
// sampled at or after that slot and be at most maxAge old.
func Fresh(st domain.PoolState, slot int64, maxAge time.Duration, now time.Time) bool {
	if st.Slot < slot {
		return false
	}
	return maxAge <= 0 || now.Sub(st.SampledAt) <= maxAge
}

// CachedProvider serves fresh cached snapshots and refetches everything else.
type CachedProvider struct {
	provider Provider
	cache    Cache
	maxAge   time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewCachedProvider wraps provider with cache. Entries older than maxAge
// are refetched.
func NewCachedProvider(provider Provider, cache Cache, maxAge time.Duration, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{
		provider: provider,
		cache:    cache,
		maxAge:   maxAge,
		logger:   logger.Named("pool_cache"),
		now:      time.Now,
	}
}

// Snapshot implements Provider. Cache failures fall through to the chain.
func (p *CachedProvider) Snapshot(ctx context.Context, swap domain.SwapRecord) (domain.PoolState, error) {
	st, ok, err := p.cache.Get(ctx, swap.Pool)
	if err != nil {
		p.logger.Warn("cache read failed", zap.String("pool", swap.Pool), zap.Error(err))
	}
	if ok && Fresh(st, swap.Slot, p.maxAge, p.now()) {
		return st, nil
	}

	st, err = p.provider.Snapshot(ctx, swap)
	if err != nil {
		return domain.PoolState{}, err
	}
	if err := p.cache.Put(ctx, st); err != nil {
		p.logger.Warn("cache write failed", zap.String("pool", swap.Pool), zap.Error(err))
	}
	return st, nil
}
