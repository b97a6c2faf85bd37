package render

import "time"

// BackoffPolicy decides how submission rate limits are retried. The
// cool-down is constant per attempt because the provider's quota window
// is fixed; attempts are bounded and exhausting them is not an error —
// it is the signal that triggers the fallback substituter.
type BackoffPolicy struct {
	// Attempts is the total submission budget per scene, including the
	// first try.
	Attempts int
	// Cooldown is the fixed wait before each resubmission.
	Cooldown time.Duration
}

// BackoffDecision is the outcome for one rate-limited attempt
type BackoffDecision struct {
	Wait   time.Duration
	GiveUp bool
}

// Next maps a 1-based attempt count that just hit a rate limit to a
// wait-then-resubmit decision, or gives up when the budget is spent.
func (p BackoffPolicy) Next(attempt int) BackoffDecision {
	if attempt >= p.Attempts {
		return BackoffDecision{GiveUp: true}
	}
	return BackoffDecision{Wait: p.Cooldown}
}
