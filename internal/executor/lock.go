package executor

import (
	"context"
	"sync"
	"time"

	"solana-sandwich-bot/internal/domain"
)

// WalletLock grants exclusive use of a wallet to one bundle. Acquire returns
// domain.ErrLockHeld when another bundle owns it, and an unlock func that is
// safe to call more than once.
type WalletLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// LocalLock is an in-process WalletLock.
type LocalLock struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLock creates an empty LocalLock.
func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(map[string]bool)}
}

// Acquire takes key without waiting. ttl is ignored: the process owning the
// lock is the process that releases it.
func (l *LocalLock) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
