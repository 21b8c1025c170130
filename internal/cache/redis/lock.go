package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/executor"
)

// unlockLua deletes a lock key only if it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// WalletLock is an executor.WalletLock shared by every process pointed at the
// same Redis, so two bots never trade one wallet at once.
type WalletLock struct {
	c        *Client
	unlockSc *redis.Script
}

// NewWalletLock creates a WalletLock backed by c.
func NewWalletLock(c *Client) *WalletLock {
	return &WalletLock{c: c, unlockSc: redis.NewScript(unlockLua)}
}

// Acquire takes key for ttl with SET NX. It returns domain.ErrLockHeld if
// another holder has it. The returned unlock is safe to call more than once.
func (l *WalletLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := l.c.key("lock", key)

	ok, err := l.c.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = l.unlockSc.Run(unlockCtx, l.c.rdb, []string{lk}, token).Err()
		})
	}
	return unlock, nil
}

var _ executor.WalletLock = (*WalletLock)(nil)
