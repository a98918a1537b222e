// Package poll provides a poll-with-timeout abstraction for waiting on
// asynchronous cloud state transitions (instance running, instance
// terminated). It replaces unconditional sleeps with bounded, cancellable
// condition checks.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the condition did not hold before the
// deadline. Callers that treat a timeout as non-fatal (reclamation) match
// on this error.
var ErrTimeout = errors.New("poll: condition not met before timeout")

// Condition reports whether the awaited state has been reached. Returning
// an error aborts the wait immediately.
type Condition func(ctx context.Context) (done bool, err error)

// Until polls cond at the given interval until it reports done, the timeout
// elapses, or the context is cancelled. The condition is evaluated once
// immediately before the first sleep.
func Until(ctx context.Context, interval, timeout time.Duration, cond Condition) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := cond(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Wait sleeps for d or until the context is cancelled, whichever comes
// first. Used for the fixed courtesy interval between attempts.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
