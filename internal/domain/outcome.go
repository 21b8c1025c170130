package domain

import "time"

// OutcomeKind classifies how a bundle ended.
type OutcomeKind string

const (
	OutcomeBothLandedProfitable   OutcomeKind = "both_landed_profitable"
	OutcomeBothLandedUnprofitable OutcomeKind = "both_landed_unprofitable"
	OutcomeFrontOnlyLanded        OutcomeKind = "front_only_landed"
	OutcomeNeitherLanded          OutcomeKind = "neither_landed"
	OutcomeAbortedStale           OutcomeKind = "aborted_stale"
)

// ExecutionOutcome is the immutable result of one bundle lifecycle.
type ExecutionOutcome struct {
	BundleID        string
	PlanID          string
	VictimSignature string
	Kind            OutcomeKind
	FinalState      BundleState
	FrontSignature  string
	BackSignature   string
	ExpectedProfit  int64
	RealizedProfit  int64
	RealizedKnown   bool // false when settlement could not be read back
	DryRun          bool
	Error           string
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Partial reports the front-landed/back-failed case, where the wallet holds
// the intermediate token and an operator has to unwind it.
func (o *ExecutionOutcome) Partial() bool {
	return o.Kind == OutcomeFrontOnlyLanded
}

// OutcomeFor maps a terminal bundle state to its outcome kind.
// profitable is only consulted for StateBackConfirmed.
func OutcomeFor(state BundleState, profitable bool) OutcomeKind {
	switch state {
	case StateBackConfirmed:
		if profitable {
			return OutcomeBothLandedProfitable
		}
		return OutcomeBothLandedUnprofitable
	case StateBackFailed:
		return OutcomeFrontOnlyLanded
	case StateAborted:
		return OutcomeAbortedStale
	default:
		return OutcomeNeitherLanded
	}
}
