package crawler

import "time"

// RetryPolicy decides how often a failed fetch is attempted before the URL
// is given up on. A URL is marked visited only after its last attempt, so it
// is never re-enqueued either way.
type RetryPolicy struct {
	// MaxAttempts is the total number of fetch attempts per URL.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Backoff is the wait before the second attempt. It doubles for every
	// further attempt, capped at MaxBackoff.
	Backoff time.Duration

	// MaxBackoff caps the wait between attempts. Zero means no cap.
	MaxBackoff time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured:
// one attempt, so a failed URL is skipped permanently.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// attempts returns the effective number of attempts.
func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.Backoff <= 0 || attempt < 1 {
		return 0
	}

	d := p.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}
