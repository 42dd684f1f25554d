// Package retry implements bounded exponential backoff for transient
// remote failures. Only errors marked retryable by the domain layer are
// retried; format and validation errors escalate immediately.
package retry

import (
	"context"
	"time"

	"github.com/quillworks/driveanswer/internal/core/domain"
	"github.com/quillworks/driveanswer/internal/logger"
)

// Policy bounds the retry behaviour for one class of remote call.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry; it doubles on each
	// subsequent retry.
	BaseDelay time.Duration
}

// DefaultPolicy retries transient failures twice with a short backoff.
var DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is exhausted. The context cancels waits between attempts.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	delay := p.BaseDelay
	var err error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !domain.IsRetryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		logger.Warn("%s failed (attempt %d/%d), retrying in %s: %v",
			op, attempt, p.MaxAttempts, delay, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return err
}
