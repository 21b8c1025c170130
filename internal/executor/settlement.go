package executor

import (
	"fmt"

	"solana-sandwich-bot/internal/solana"
)

// tokenDelta returns how much the owner's balance of mint changed in tx,
// summed over every token account the owner holds for that mint.
func tokenDelta(tx *solana.Transaction, owner, mint string) (int64, error) {
	if tx == nil || tx.Meta == nil {
		return 0, fmt.Errorf("transaction metadata unavailable")
	}
	var pre, post int64
	for _, b := range tx.Meta.PreTokenBalances {
		if b.Owner == owner && b.Mint == mint {
			pre += int64(b.Amount)
		}
	}
	for _, b := range tx.Meta.PostTokenBalances {
		if b.Owner == owner && b.Mint == mint {
			post += int64(b.Amount)
		}
	}
	return post - pre, nil
}

// settle is the realized base-mint profit of both legs after fees.
func settle(front, back *solana.Transaction, owner, baseMint string, txFee uint64) (int64, error) {
	spent, err := tokenDelta(front, owner, baseMint)
	if err != nil {
		return 0, fmt.Errorf("front leg: %w", err)
	}
	received, err := tokenDelta(back, owner, baseMint)
	if err != nil {
		return 0, fmt.Errorf("back leg: %w", err)
	}
	return spent + received - 2*int64(txFee), nil
}
