package retry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// AttemptFunc performs a single upstream call.
type AttemptFunc func(ctx context.Context) (*http.Response, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real timer-backed SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Driver runs attempts until the policy says stop.
type Driver struct {
	policy Policy
	sleep  SleepFunc
	log    zerolog.Logger
}

// NewDriver creates a driver. A nil sleep means the real timer.
func NewDriver(policy Policy, sleep SleepFunc, log zerolog.Logger) *Driver {
	if sleep == nil {
		sleep = Sleep
	}
	return &Driver{
		policy: policy,
		sleep:  sleep,
		log:    log,
	}
}

// Policy returns the policy the driver applies.
func (d *Driver) Policy() Policy {
	return d.policy
}

// Do calls attempt until it yields a final response or the attempts run out.
// The returned response may carry any status, including 429 on the last attempt.
func (d *Driver) Do(ctx context.Context, attempt AttemptFunc) (*http.Response, error) {
	if d.policy.MaxAttempts < 1 {
		return nil, errors.New("retry policy allows no attempts")
	}

	for i := 0; i < d.policy.MaxAttempts; i++ {
		resp, err := attempt(ctx)
		outcome := d.policy.Classify(resp, err, i)

		switch outcome.Kind {
		case Success:
			return resp, nil
		case Failure:
			return nil, outcome.Err
		}

		ev := d.log.Warn().
			Int("attempt", i+1).
			Int("max_attempts", d.policy.MaxAttempts).
			Dur("delay", outcome.Delay)
		if err != nil {
			ev = ev.Err(err)
		} else {
			ev = ev.Int("status", resp.StatusCode)
			discard(resp)
		}
		ev.Msg("Upstream call failed, retrying")

		if err := d.sleep(ctx, outcome.Delay); err != nil {
			return nil, err
		}
	}

	// Classify never asks for a retry on the last attempt.
	return nil, errors.New("retry attempts exhausted")
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
