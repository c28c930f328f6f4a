// ABOUTME: Retry utilities for generative service calls with linear backoff
// ABOUTME: Used by the LLM client between attempts; every wait honors context cancellation
package util

import (
	"context"
	"time"
)

// LinearBackoff returns the wait before the next attempt after a failed one.
// The wait grows by baseDelay per failed attempt: base, 2*base, 3*base...
func LinearBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	// Cap attempt to keep the product well away from overflow
	if attempt > 100 {
		attempt = 100
	}
	return baseDelay * time.Duration(attempt)
}

// Sleep waits for d or until ctx is done, whichever comes first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
