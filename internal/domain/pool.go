package domain

import "time"

// PoolState is a reserve snapshot of one pool taken at Slot.
// Blockhash is the recent blockhash sampled together with the reserves.
type PoolState struct {
	Pool                 string
	CoinMint             string
	PCMint               string
	CoinReserve          uint64
	PCReserve            uint64
	FeeBps               uint64
	FeeNumerator         uint64
	FeeDenominator       uint64
	Slot                 int64
	Blockhash            string
	LastValidBlockHeight uint64
	SampledAt            time.Time
}

// Reserves returns (reserveIn, reserveOut) for a swap that spends inputMint.
// ok is false when inputMint is not one of the pool's mints.
func (p PoolState) Reserves(inputMint string) (reserveIn, reserveOut uint64, ok bool) {
	switch inputMint {
	case p.CoinMint:
		return p.CoinReserve, p.PCReserve, true
	case p.PCMint:
		return p.PCReserve, p.CoinReserve, true
	default:
		return 0, 0, false
	}
}

// Fee returns the fee as numerator/denominator, falling back to FeeBps.
func (p PoolState) Fee() (num, den uint64) {
	if p.FeeDenominator > 0 {
		return p.FeeNumerator, p.FeeDenominator
	}
	return p.FeeBps, 10_000
}
