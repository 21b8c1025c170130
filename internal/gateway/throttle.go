// Package gateway is the single rate-limited door to the Solana RPC endpoint.
package gateway

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"solana-sandwich-bot/internal/domain"
)

// Throttle is a process-wide token bucket admitting at most N requests per
// window. Permits are granted in request order.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle admits requests per window with the given burst (at least 1).
func NewThrottle(requests int, window time.Duration, burst int) (*Throttle, error) {
	if requests <= 0 || window <= 0 {
		return nil, fmt.Errorf("throttle: invalid rate %d per %s", requests, window)
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(window/time.Duration(requests)), burst)}, nil
}

// Acquire blocks until a permit is available. It returns
// domain.ErrRateLimitTimeout without waiting when the permit would arrive
// after timeout or after the context deadline, and ctx.Err() if the context
// ends while waiting. A timeout of zero waits for as long as ctx allows.
// Reservations that are not used go back to the bucket.
func (t *Throttle) Acquire(ctx context.Context, timeout time.Duration) error {
	now := time.Now()
	r := t.limiter.ReserveN(now, 1)
	if !r.OK() {
		return domain.ErrRateLimitTimeout
	}

	delay := r.DelayFrom(now)
	if timeout > 0 && delay > timeout {
		r.CancelAt(now)
		return domain.ErrRateLimitTimeout
	}
	if deadline, ok := ctx.Deadline(); ok && deadline.Before(now.Add(delay)) {
		r.CancelAt(now)
		return domain.ErrRateLimitTimeout
	}
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// Limit returns the steady-state rate in permits per second.
func (t *Throttle) Limit() float64 {
	return float64(t.limiter.Limit())
}
