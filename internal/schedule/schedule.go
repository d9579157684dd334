// Package schedule runs the export the way the orchestrator does: on
// demand, one run at a time, retrying failed attempts after a fixed delay.
package schedule

import "time"

// Policy is a fixed-delay retry budget. There is no backoff and no jitter,
// and every error kind is retried the same way.
type Policy struct {
	Retries int
	Delay   time.Duration
}

// DefaultPolicy allows four retries sixteen minutes apart.
func DefaultPolicy() Policy { return Policy{Retries: 4, Delay: 16 * time.Minute} }

// MaxAttempts counts the first attempt plus retries.
func (p Policy) MaxAttempts() int {
	if p.Retries < 0 {
		return 1
	}
	return p.Retries + 1
}

// NextAttempt returns when the attempt after the given failed one fires,
// or false once the budget is spent.
func NextAttempt(failedAt time.Time, attempt int, p Policy) (time.Time, bool) {
	if attempt >= p.MaxAttempts() {
		return time.Time{}, false
	}
	return failedAt.Add(p.Delay), true
}
