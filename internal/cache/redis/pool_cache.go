package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/pool"
)

// putIfNewerLua stores ARGV[2] unless the cached slot is later than ARGV[1].
const putIfNewerLua = `
local cur = redis.call('HGET', KEYS[1], 'slot')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
    return 0
end
redis.call('HSET', KEYS[1], 'slot', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`

// PoolCache implements pool.Cache in Redis hashes.
//
// Key schema:
//
//	{prefix}:pool:{amm} - hash with fields "slot" and "data" (JSON PoolState)
type PoolCache struct {
	c     *Client
	ttl   time.Duration
	putSc *redis.Script
}

// NewPoolCache creates a PoolCache. Entries expire after ttl (default one minute);
// freshness against the swap slot is still decided by pool.CachedProvider.
func NewPoolCache(c *Client, ttl time.Duration) *PoolCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PoolCache{c: c, ttl: ttl, putSc: redis.NewScript(putIfNewerLua)}
}

// Get returns the cached snapshot of amm, ok=false on a miss.
func (pc *PoolCache) Get(ctx context.Context, amm string) (domain.PoolState, bool, error) {
	data, err := pc.c.rdb.HGet(ctx, pc.c.key("pool", amm), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PoolState{}, false, nil
		}
		return domain.PoolState{}, false, fmt.Errorf("redis: get pool %s: %w", amm, err)
	}

	var st domain.PoolState
	if err := json.Unmarshal(data, &st); err != nil {
		return domain.PoolState{}, false, fmt.Errorf("redis: unmarshal pool %s: %w", amm, err)
	}
	return st, true, nil
}

// Put stores st unless a snapshot from a later slot is already cached.
func (pc *PoolCache) Put(ctx context.Context, st domain.PoolState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("redis: marshal pool %s: %w", st.Pool, err)
	}

	err = pc.putSc.Run(ctx, pc.c.rdb,
		[]string{pc.c.key("pool", st.Pool)},
		strconv.FormatInt(st.Slot, 10), data, pc.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: put pool %s: %w", st.Pool, err)
	}
	return nil
}

// Invalidate drops the cached snapshot of amm.
func (pc *PoolCache) Invalidate(ctx context.Context, amm string) error {
	if err := pc.c.rdb.Del(ctx, pc.c.key("pool", amm)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate pool %s: %w", amm, err)
	}
	return nil
}

var _ pool.Cache = (*PoolCache)(nil)
