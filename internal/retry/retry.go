// Package retry provides a bounded retry policy for transient network
// failures on external calls (worker directory reads, ranking, gateway).
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes how many times an operation is attempted and how long
// to wait between attempts. The delay doubles after every failed attempt.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Default is the policy used for profile and ranking calls.
var Default = Policy{MaxAttempts: 3, Delay: 500 * time.Millisecond}

// Do runs fn until it succeeds, the attempts are exhausted, or the context
// is cancelled. The last error is returned wrapped with the attempt count.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
