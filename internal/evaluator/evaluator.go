package evaluator

import (
	"math"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/idhash"
)

// DefaultGridSteps is the coarse grid resolution used when Params.GridSteps is 0.
const DefaultGridSteps = 32

// Params are the strategy knobs of one evaluation.
type Params struct {
	// MaxTradeSize caps the front-run input, in base units.
	MaxTradeSize uint64
	// MinMargin is the smallest acceptable net profit, in base units.
	MinMargin int64
	// FeeBps overrides the pool fee when non-zero.
	FeeBps uint64
	// TxFee is the estimated fee of one transaction, in base units.
	TxFee uint64
	// ToleranceBps lets a smaller front size win if its profit is within
	// this many bps of the best found.
	ToleranceBps uint64
	// GridSteps is the number of coarse grid intervals.
	GridSteps int
}

// Validate reports whether the params can be evaluated.
func (p Params) Validate() bool {
	return p.MaxTradeSize > 0 &&
		p.MaxTradeSize <= math.MaxInt64 &&
		p.MinMargin >= 0 &&
		p.TxFee <= math.MaxInt64/4 &&
		p.ToleranceBps <= 10_000 &&
		p.GridSteps >= 0
}

// Evaluate sizes a sandwich around swap on pool using the Raydium curve.
// It returns a plan or the reason none exists. Deterministic for equal inputs.
func Evaluate(swap domain.SwapRecord, pool domain.PoolState, params Params) (*domain.SandwichPlan, domain.RejectReason) {
	var curve ConstantProduct
	if params.FeeBps > 0 {
		curve = NewConstantProduct(params.FeeBps)
	} else {
		num, den := pool.Fee()
		curve = ConstantProduct{FeeNumerator: num, FeeDenominator: den}
	}
	return EvaluateWith(curve, swap, pool, params)
}

// EvaluateWith is Evaluate against an arbitrary curve.
func EvaluateWith(curve Curve, swap domain.SwapRecord, pool domain.PoolState, params Params) (*domain.SandwichPlan, domain.RejectReason) {
	if !params.Validate() {
		return nil, domain.RejectInvalidParams
	}
	if swap.AmountIn == 0 || swap.MinimumOut == 0 {
		return nil, domain.RejectUnsupportedSwap
	}
	if swap.Kind != domain.SwapBaseIn && swap.Kind != domain.SwapBaseOut {
		return nil, domain.RejectUnsupportedSwap
	}

	reserveIn, reserveOut, ok := pool.Reserves(swap.InputMint)
	if !ok || reserveIn == 0 || reserveOut == 0 {
		return nil, domain.RejectNoReserves
	}
	if swap.OutputMint != "" {
		if _, _, ok := pool.Reserves(swap.OutputMint); !ok || swap.OutputMint == swap.InputMint {
			return nil, domain.RejectNoReserves
		}
	}

	s := &sandwich{curve: curve, swap: swap, reserveIn: reserveIn, reserveOut: reserveOut}

	if !s.simulate(1).feasible {
		return nil, domain.RejectVictimSlippage
	}
	maxX := s.maxFeasible(params.MaxTradeSize)

	fees := 2 * params.TxFee
	floor := params.MinMargin + int64(fees)

	bestX, best := s.search(maxX, params.GridSteps)
	if best.profit > 0 && best.profit >= floor && params.ToleranceBps > 0 {
		// A smaller size may win only while it still clears the margin.
		threshold := max(best.profit-best.profit*int64(params.ToleranceBps)/10_000, floor)
		bestX = s.smallestWithin(bestX, threshold)
		best = s.simulate(bestX)
	}

	net := best.profit - int64(fees)
	if best.profit <= 0 || net < params.MinMargin {
		return nil, domain.RejectBelowMargin
	}

	return &domain.SandwichPlan{
		ID:          idhash.ComputePlanID(swap.Signature, swap.InstructionIndex, bestX, pool.Blockhash),
		Swap:        swap,
		Pool:        pool,
		FrontIn:     bestX,
		FrontOut:    best.frontOut,
		VictimIn:    best.victimIn,
		VictimOut:   best.victimOut,
		BackIn:      best.frontOut,
		BackOut:     best.backOut,
		GrossProfit: best.profit,
		TxFees:      fees,
		NetProfit:   net,
		BaseMint:    swap.InputMint,
		QuoteMint:   swap.OutputMint,
	}, ""
}

// sandwich simulates front, victim and back legs for one candidate size.
type sandwich struct {
	curve      Curve
	swap       domain.SwapRecord
	reserveIn  uint64
	reserveOut uint64
}

type legs struct {
	feasible  bool
	frontOut  uint64
	victimIn  uint64
	victimOut uint64
	backOut   uint64
	profit    int64 // backOut - x
}

func (s *sandwich) simulate(x uint64) legs {
	frontOut := s.curve.AmountOut(x, s.reserveIn, s.reserveOut)
	if frontOut >= s.reserveOut {
		return legs{}
	}
	rIn := s.reserveIn + x
	if rIn < s.reserveIn {
		return legs{}
	}
	rOut := s.reserveOut - frontOut

	var victimIn, victimOut uint64
	switch s.swap.Kind {
	case domain.SwapBaseIn:
		victimIn = s.swap.AmountIn
		victimOut = s.curve.AmountOut(victimIn, rIn, rOut)
		if victimOut < s.swap.MinimumOut {
			return legs{}
		}
	case domain.SwapBaseOut:
		need, ok := s.curve.AmountIn(s.swap.MinimumOut, rIn, rOut)
		if !ok || need > s.swap.AmountIn {
			return legs{}
		}
		victimIn, victimOut = need, s.swap.MinimumOut
	default:
		return legs{}
	}

	if rIn+victimIn < rIn || victimOut >= rOut {
		return legs{}
	}
	rIn += victimIn
	rOut -= victimOut

	backOut := s.curve.AmountOut(frontOut, rOut, rIn)
	return legs{
		feasible:  true,
		frontOut:  frontOut,
		victimIn:  victimIn,
		victimOut: victimOut,
		backOut:   backOut,
		profit:    int64(backOut) - int64(x),
	}
}

// maxFeasible returns the largest x in [1, limit] that keeps the victim
// within its slippage bound. simulate(1) must be feasible.
func (s *sandwich) maxFeasible(limit uint64) uint64 {
	if s.simulate(limit).feasible {
		return limit
	}
	lo, hi := uint64(1), limit // lo feasible, hi infeasible
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if s.simulate(mid).feasible {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

// profitAt is simulate(x).profit with infeasible sizes scored at MinInt64.
func (s *sandwich) profitAt(x uint64) int64 {
	l := s.simulate(x)
	if !l.feasible {
		return math.MinInt64
	}
	return l.profit
}

// search runs a coarse grid over [1, maxX] and refines the best cell with a
// golden-section search. Ties go to the smaller size.
func (s *sandwich) search(maxX uint64, steps int) (uint64, legs) {
	if steps <= 0 {
		steps = DefaultGridSteps
	}

	bestX, bestP := uint64(1), s.profitAt(1)
	consider := func(x uint64) {
		if p := s.profitAt(x); p > bestP || (p == bestP && x < bestX) {
			bestX, bestP = x, p
		}
	}

	span := maxX - 1
	points := make([]uint64, 0, steps+1)
	for k := 0; k <= steps; k++ {
		x := 1 + uint64(float64(span)*float64(k)/float64(steps))
		if len(points) > 0 && x == points[len(points)-1] {
			continue
		}
		points = append(points, x)
		consider(x)
	}

	idx := 0
	for i, x := range points {
		if x == bestX {
			idx = i
			break
		}
	}
	lo := points[max(idx-1, 0)]
	hi := points[min(idx+1, len(points)-1)]

	const invPhi = 0.6180339887498949
	for hi-lo > 3 {
		d := uint64(float64(hi-lo) * invPhi)
		m1, m2 := hi-d, lo+d
		if m1 >= m2 {
			break
		}
		if s.profitAt(m1) < s.profitAt(m2) {
			lo = m1
		} else {
			hi = m2
		}
	}
	for x := lo; x <= hi; x++ {
		consider(x)
	}

	return bestX, s.simulate(bestX)
}

// smallestWithin binary-searches the smallest x in [1, upper] whose profit
// reaches threshold. upper itself must reach it.
func (s *sandwich) smallestWithin(upper uint64, threshold int64) uint64 {
	lo, hi := uint64(1), upper
	if s.profitAt(lo) >= threshold {
		return lo
	}
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if s.profitAt(mid) >= threshold {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi
}
