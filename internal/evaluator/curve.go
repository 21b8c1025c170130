// Package evaluator sizes profitable sandwiches around decoded swaps.
package evaluator

import (
	"github.com/holiman/uint256"
)

// Curve prices a swap against a reserve pair.
type Curve interface {
	// AmountOut returns the output for spending in, or 0 if nothing comes out.
	AmountOut(in, reserveIn, reserveOut uint64) uint64
	// AmountIn returns the input needed to receive exactly out.
	// ok is false when out cannot be paid from reserveOut.
	AmountIn(out, reserveIn, reserveOut uint64) (in uint64, ok bool)
}

// ConstantProduct is the Raydium AMM v4 curve: x*y=k with the trade fee
// deducted from the input before pricing.
type ConstantProduct struct {
	FeeNumerator   uint64
	FeeDenominator uint64
}

// NewConstantProduct returns the curve for a fee given in basis points.
func NewConstantProduct(feeBps uint64) ConstantProduct {
	return ConstantProduct{FeeNumerator: feeBps, FeeDenominator: 10_000}
}

func (c ConstantProduct) valid() bool {
	return c.FeeDenominator > 0 && c.FeeNumerator < c.FeeDenominator
}

// AmountOut implements Curve.
func (c ConstantProduct) AmountOut(in, reserveIn, reserveOut uint64) uint64 {
	if in == 0 || reserveIn == 0 || reserveOut == 0 || !c.valid() {
		return 0
	}

	amount := uint256.NewInt(in)
	den := uint256.NewInt(c.FeeDenominator)

	// fee = ceil(in * num / den)
	fee := new(uint256.Int).Mul(amount, uint256.NewInt(c.FeeNumerator))
	fee.Add(fee, den)
	fee.Sub(fee, uint256.NewInt(1))
	fee.Div(fee, den)

	if fee.Cmp(amount) >= 0 {
		return 0
	}
	net := new(uint256.Int).Sub(amount, fee)

	num := new(uint256.Int).Mul(uint256.NewInt(reserveOut), net)
	denom := new(uint256.Int).Add(uint256.NewInt(reserveIn), net)
	return num.Div(num, denom).Uint64()
}

// AmountIn implements Curve.
func (c ConstantProduct) AmountIn(out, reserveIn, reserveOut uint64) (uint64, bool) {
	if out == 0 || out >= reserveOut || reserveIn == 0 || !c.valid() {
		return 0, false
	}

	// in_net = ceil(reserveIn * out / (reserveOut - out))
	remaining := uint256.NewInt(reserveOut - out)
	net := new(uint256.Int).Mul(uint256.NewInt(reserveIn), uint256.NewInt(out))
	net = ceilDiv(net, remaining)

	// in = ceil(in_net * den / (den - num))
	keep := uint256.NewInt(c.FeeDenominator - c.FeeNumerator)
	gross := new(uint256.Int).Mul(net, uint256.NewInt(c.FeeDenominator))
	gross = ceilDiv(gross, keep)

	if !gross.IsUint64() {
		return 0, false
	}
	return gross.Uint64(), true
}

func ceilDiv(x, y *uint256.Int) *uint256.Int {
	q, r := new(uint256.Int).DivMod(x, y, new(uint256.Int))
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return q
}
