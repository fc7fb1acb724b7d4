package retry

import (
	"context"
	"fmt"
	"time"
)

// Backoff doubles Base for every attempt, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Default is the request retry schedule: 100ms, 200ms, 400ms ... up to 2s.
var Default = Backoff{Base: 100 * time.Millisecond, Max: 2 * time.Second}

// Delay returns the pause before attempt (zero-based).
func (b Backoff) Delay(attempt int) time.Duration {
	delay := b.Base
	for i := 0; i < attempt && delay < b.Max; i++ {
		delay *= 2
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return delay
}

// Wait sleeps for Delay(attempt), returning early with the context's error.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// EnsureTimeout applies timeout unless the caller already set a deadline.
func EnsureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
