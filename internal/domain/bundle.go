package domain

import "time"

// SignedTx is one fully signed, serialized transaction.
type SignedTx struct {
	Signature string
	Payload   []byte
}

// TransactionBundle is the {front, back} pair bracketing one victim.
// The back leg may only be submitted after the front leg has landed.
type TransactionBundle struct {
	ID              string
	PlanID          string
	VictimSignature string
	Wallet          string
	Blockhash       string
	Front           SignedTx
	Back            SignedTx
	BuiltAt         time.Time
}

// BundleState is the coordinator state of one bundle.
type BundleState string

const (
	StateBuilt          BundleState = "built"
	StateFrontSubmitted BundleState = "front_submitted"
	StateFrontConfirmed BundleState = "front_confirmed"
	StateBackSubmitted  BundleState = "back_submitted"
	StateBackConfirmed  BundleState = "back_confirmed"
	StateFrontFailed    BundleState = "front_failed"
	StateBackFailed     BundleState = "back_failed"
	StateAborted        BundleState = "aborted"
)

var transitions = map[BundleState][]BundleState{
	StateBuilt:          {StateFrontSubmitted, StateFrontFailed, StateAborted},
	StateFrontSubmitted: {StateFrontConfirmed, StateFrontFailed},
	StateFrontConfirmed: {StateBackSubmitted, StateBackFailed},
	StateBackSubmitted:  {StateBackConfirmed, StateBackFailed},
}

// CanTransition reports whether from -> to is an allowed coordinator step.
func CanTransition(from, to BundleState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s BundleState) Terminal() bool {
	return len(transitions[s]) == 0
}

// Transition records one state change of a bundle.
type Transition struct {
	BundleID  string
	From      BundleState
	To        BundleState
	Signature string
	Error     string
	At        time.Time
}

// TxStatus is the confirmation status of a submitted transaction.
type TxStatus string

const (
	TxPending TxStatus = "pending"
	TxLanded  TxStatus = "landed"
	TxFailed  TxStatus = "failed"
	TxUnknown TxStatus = "unknown"
)
