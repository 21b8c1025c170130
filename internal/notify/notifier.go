// Package notify delivers operator alerts to Telegram, Discord and the log.
// Notifications can be filtered by event type so operators receive only the
// alerts they care about.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"solana-sandwich-bot/internal/observability"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. Notify only
// forwards events in the allowed set; NotifyAll bypasses the filter.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event types
	logger  *zap.Logger

	attempts int
	backoff  time.Duration
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithRetry sets how many times a failed delivery is attempted and the delay
// between attempts.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(n *Notifier) {
		if attempts > 0 {
			n.attempts = attempts
		}
		n.backoff = backoff
	}
}

// NewNotifier creates a Notifier that will deliver to the given senders. If
// events is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, logger *zap.Logger, opts ...Option) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	n := &Notifier{
		senders:  senders,
		events:   allowed,
		logger:   logger.Named("notifier"),
		attempts: 3,
		backoff:  time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends a notification to all senders only if the event type is in the
// allowed list.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.Debug("event filtered out", zap.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll sends a notification to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch delivers to every sender, retrying each failed sender. A single
// sender failure does not prevent delivery to the others.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := n.sendWithRetry(ctx, s, title, message); err != nil {
			n.logger.Error("sender failed",
				zap.String("sender", s.Name()),
				zap.String("title", title),
				zap.String("message", message),
				zap.Error(err),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.Debug("notification sent",
			zap.String("sender", s.Name()),
			zap.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

func (n *Notifier) sendWithRetry(ctx context.Context, s Sender, title, message string) error {
	var err error
	for attempt := 1; attempt <= n.attempts; attempt++ {
		err = s.Send(ctx, title, message)
		observability.RecordAlert(s.Name(), err)
		if err == nil {
			return nil
		}
		if attempt == n.attempts {
			break
		}
		n.logger.Warn("send attempt failed",
			zap.String("sender", s.Name()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.backoff):
		}
	}
	return err
}
