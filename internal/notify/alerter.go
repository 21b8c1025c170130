package notify

import (
	"context"
	"fmt"
	"strings"

	"solana-sandwich-bot/internal/domain"
)

// OutcomeAlerter turns execution outcomes into notifications. Partial fills
// bypass the event filter; other outcomes are delivered only when their kind
// is in the notifier's allowed list.
type OutcomeAlerter struct {
	notifier *Notifier
}

// NewOutcomeAlerter creates an OutcomeAlerter.
func NewOutcomeAlerter(n *Notifier) *OutcomeAlerter {
	return &OutcomeAlerter{notifier: n}
}

// Alert notifies about o.
func (a *OutcomeAlerter) Alert(ctx context.Context, o *domain.ExecutionOutcome) error {
	if o.Partial() {
		return a.notifier.NotifyAll(ctx, "Partial fill: manual unwind required", formatOutcome(o))
	}
	return a.notifier.Notify(ctx, string(o.Kind), "Bundle "+string(o.Kind), formatOutcome(o))
}

func formatOutcome(o *domain.ExecutionOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "bundle: %s\n", o.BundleID)
	fmt.Fprintf(&b, "victim: %s\n", o.VictimSignature)
	fmt.Fprintf(&b, "state: %s\n", o.FinalState)
	if o.FrontSignature != "" {
		fmt.Fprintf(&b, "front: %s\n", o.FrontSignature)
	}
	if o.BackSignature != "" {
		fmt.Fprintf(&b, "back: %s\n", o.BackSignature)
	}
	fmt.Fprintf(&b, "expected profit: %d\n", o.ExpectedProfit)
	if o.RealizedKnown {
		fmt.Fprintf(&b, "realized profit: %d\n", o.RealizedProfit)
	}
	if o.DryRun {
		b.WriteString("mode: dry-run\n")
	}
	if o.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", o.Error)
	}
	return strings.TrimRight(b.String(), "\n")
}
