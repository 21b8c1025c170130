package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// SandwichPlan is an accepted sandwich around one victim swap.
// FrontIn is spent in the victim's input mint (BaseMint) and the back leg
// converts FrontOut of QuoteMint back into BaseMint.
type SandwichPlan struct {
	ID   string
	Swap SwapRecord
	Pool PoolState

	FrontIn   uint64
	FrontOut  uint64
	VictimIn  uint64
	VictimOut uint64
	BackIn    uint64
	BackOut   uint64

	GrossProfit int64 // BackOut - FrontIn
	TxFees      uint64
	NetProfit   int64 // GrossProfit - TxFees

	BaseMint  string
	QuoteMint string
	CreatedAt time.Time
}

// VictimPrice is the victim's predicted execution price (output per input)
// after the front-run.
func (p *SandwichPlan) VictimPrice() decimal.Decimal {
	if p.VictimIn == 0 {
		return decimal.Zero
	}
	out := decimal.NewFromBigInt(new(big.Int).SetUint64(p.VictimOut), 0)
	in := decimal.NewFromBigInt(new(big.Int).SetUint64(p.VictimIn), 0)
	return out.DivRound(in, 12)
}

// RejectReason explains why an evaluation produced no plan.
type RejectReason string

const (
	RejectNoReserves      RejectReason = "no_reserves"
	RejectUnsupportedSwap RejectReason = "unsupported_swap"
	RejectVictimSlippage  RejectReason = "victim_slippage"
	RejectBelowMargin     RejectReason = "below_margin"
	RejectInvalidParams   RejectReason = "invalid_params"
)

// PlanEvaluation is the analytics row written for every evaluated swap,
// accepted or rejected.
type PlanEvaluation struct {
	VictimSignature  string
	InstructionIndex int
	Pool             string
	Slot             int64
	InputMint        string
	AmountIn         uint64
	MinimumOut       uint64
	Accepted         bool
	Reason           RejectReason
	PlanID           string
	FrontIn          uint64
	NetProfit        int64
	EvaluatedAt      time.Time
}

// Evaluation builds the analytics row for an accepted plan.
func (p *SandwichPlan) Evaluation(at time.Time) PlanEvaluation {
	ev := RejectedEvaluation(p.Swap, "", at)
	ev.Accepted = true
	ev.PlanID = p.ID
	ev.FrontIn = p.FrontIn
	ev.NetProfit = p.NetProfit
	return ev
}

// RejectedEvaluation builds the analytics row for a rejected swap.
func RejectedEvaluation(swap SwapRecord, reason RejectReason, at time.Time) PlanEvaluation {
	return PlanEvaluation{
		VictimSignature:  swap.Signature,
		InstructionIndex: swap.InstructionIndex,
		Pool:             swap.Pool,
		Slot:             swap.Slot,
		InputMint:        swap.InputMint,
		AmountIn:         swap.AmountIn,
		MinimumOut:       swap.MinimumOut,
		Reason:           reason,
		EvaluatedAt:      at,
	}
}
