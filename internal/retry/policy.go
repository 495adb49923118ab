// Package retry decides when an upstream call should be attempted again and drives the attempts.
package retry

import (
	"net/http"
	"time"
)

// Kind is the verdict for one attempt.
type Kind int

const (
	// Success means the response is final and should be handed to the caller as-is.
	Success Kind = iota
	// RetryAfter means wait Outcome.Delay and attempt again.
	RetryAfter
	// Failure means give up with Outcome.Err.
	Failure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case RetryAfter:
		return "retry_after"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is the result of classifying one attempt.
type Outcome struct {
	Kind  Kind
	Delay time.Duration
	Err   error
}

// Policy is an exponential backoff capped at MaxDelay, limited to MaxAttempts tries.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy allows 3 attempts with 1s, 2s waits and an 8s ceiling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    8 * time.Second,
	}
}

// Backoff returns min(BaseDelay * 2^attempt, MaxDelay). Attempt is 0-indexed.
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Classify decides what to do with the result of attempt number attempt (0-indexed).
//
// Rate limiting (429) and transport errors are retried while attempts remain. Every other
// response, whatever its status, is final. On the last attempt a 429 is also final, so the
// caller sees it and checks the status itself.
func (p Policy) Classify(resp *http.Response, err error, attempt int) Outcome {
	last := attempt >= p.MaxAttempts-1

	if err != nil {
		if last {
			return Outcome{Kind: Failure, Err: err}
		}
		return Outcome{Kind: RetryAfter, Delay: p.Backoff(attempt), Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests && !last {
		return Outcome{Kind: RetryAfter, Delay: p.Backoff(attempt)}
	}

	return Outcome{Kind: Success}
}
