package pool

import (
	"context"
	"fmt"
	"time"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/solana"
)

// Chain is the part of the gateway the fetcher reads from.
type Chain interface {
	FetchAccounts(ctx context.Context, keys []string) (*solana.MultipleAccounts, error)
	LatestBlockhash(ctx context.Context) (*solana.LatestBlockhash, error)
}

// Provider returns the reserves a swap would trade against.
type Provider interface {
	Snapshot(ctx context.Context, swap domain.SwapRecord) (domain.PoolState, error)
}

// Fetcher reads pool state from the chain.
type Fetcher struct {
	chain Chain
	now   func() time.Time
}

// NewFetcher creates a Fetcher.
func NewFetcher(chain Chain) *Fetcher {
	return &Fetcher{chain: chain, now: time.Now}
}

// Snapshot reads the AMM account, both vaults and the open orders in one
// call, so all balances share a slot, then samples the latest blockhash.
// Reserves exclude PnL the protocol has not collected yet.
func (f *Fetcher) Snapshot(ctx context.Context, swap domain.SwapRecord) (domain.PoolState, error) {
	keys, err := f.accountKeys(ctx, swap)
	if err != nil {
		return domain.PoolState{}, err
	}

	res, err := f.chain.FetchAccounts(ctx, []string{swap.Pool, keys.CoinVault, keys.PCVault, keys.OpenOrders})
	if err != nil {
		return domain.PoolState{}, fmt.Errorf("fetch pool %s: %w", swap.Pool, err)
	}
	if len(res.Accounts) != 4 {
		return domain.PoolState{}, fmt.Errorf("fetch pool %s: expected 4 accounts, got %d", swap.Pool, len(res.Accounts))
	}
	for i, name := range []string{"amm", "coin vault", "pc vault"} {
		if res.Accounts[i] == nil {
			return domain.PoolState{}, fmt.Errorf("fetch pool %s: %s account missing", swap.Pool, name)
		}
	}

	info, err := ParseAmmInfo(res.Accounts[0].Data)
	if err != nil {
		return domain.PoolState{}, err
	}
	coin, err := solana.ParseTokenAccount(res.Accounts[1].Data)
	if err != nil {
		return domain.PoolState{}, fmt.Errorf("coin vault: %w", err)
	}
	pc, err := solana.ParseTokenAccount(res.Accounts[2].Data)
	if err != nil {
		return domain.PoolState{}, fmt.Errorf("pc vault: %w", err)
	}

	var oo OpenOrders
	if acct := res.Accounts[3]; acct != nil {
		if oo, err = ParseOpenOrders(acct.Data); err != nil {
			return domain.PoolState{}, err
		}
	}

	bh, err := f.chain.LatestBlockhash(ctx)
	if err != nil {
		return domain.PoolState{}, fmt.Errorf("latest blockhash: %w", err)
	}

	return domain.PoolState{
		Pool:                 swap.Pool,
		CoinMint:             info.CoinMint,
		PCMint:               info.PCMint,
		CoinReserve:          reserve(coin.Amount, oo.NativeCoinTotal, info.NeedTakePnlCoin),
		PCReserve:            reserve(pc.Amount, oo.NativePCTotal, info.NeedTakePnlPC),
		FeeBps:               info.SwapFeeNumerator * 10_000 / info.SwapFeeDenominator,
		FeeNumerator:         info.SwapFeeNumerator,
		FeeDenominator:       info.SwapFeeDenominator,
		Slot:                 res.Slot,
		Blockhash:            bh.Blockhash,
		LastValidBlockHeight: bh.LastValidBlockHeight,
		SampledAt:            f.now().UTC(),
	}, nil
}

// accountKeys returns the vault and open-orders addresses, from the victim
// instruction when available and from the AMM account otherwise.
func (f *Fetcher) accountKeys(ctx context.Context, swap domain.SwapRecord) (*domain.PoolKeys, error) {
	if swap.Pool == "" {
		return nil, fmt.Errorf("swap has no pool")
	}
	if k := swap.Accounts; k != nil && k.CoinVault != "" && k.PCVault != "" && k.OpenOrders != "" {
		return k, nil
	}

	res, err := f.chain.FetchAccounts(ctx, []string{swap.Pool})
	if err != nil {
		return nil, fmt.Errorf("fetch pool %s: %w", swap.Pool, err)
	}
	if len(res.Accounts) != 1 || res.Accounts[0] == nil {
		return nil, fmt.Errorf("fetch pool %s: amm account missing", swap.Pool)
	}
	info, err := ParseAmmInfo(res.Accounts[0].Data)
	if err != nil {
		return nil, err
	}
	return &domain.PoolKeys{AmmID: swap.Pool, CoinVault: info.CoinVault, PCVault: info.PCVault, OpenOrders: info.OpenOrders}, nil
}

func reserve(vault, orderBook, pnl uint64) uint64 {
	total := vault + orderBook
	if total < vault || pnl >= total {
		return 0
	}
	return total - pnl
}
