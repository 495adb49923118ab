package retry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("{}")),
	}
}

type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) Sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestBackoff(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, time.Second, p.Backoff(0))
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 8*time.Second, p.Backoff(3))
	assert.Equal(t, 8*time.Second, p.Backoff(4))
	assert.Equal(t, 8*time.Second, p.Backoff(100))
	assert.Equal(t, time.Second, p.Backoff(-1))
}

func TestClassify(t *testing.T) {
	p := DefaultPolicy()
	transportErr := errors.New("connection refused")

	tests := []struct {
		name      string
		resp      *http.Response
		err       error
		attempt   int
		wantKind  Kind
		wantDelay time.Duration
	}{
		{"ok first attempt", response(200), nil, 0, Success, 0},
		{"429 first attempt", response(429), nil, 0, RetryAfter, time.Second},
		{"429 second attempt", response(429), nil, 1, RetryAfter, 2 * time.Second},
		{"429 last attempt is final", response(429), nil, 2, Success, 0},
		{"500 is not retried", response(500), nil, 0, Success, 0},
		{"404 is not retried", response(404), nil, 1, Success, 0},
		{"transport error first attempt", nil, transportErr, 0, RetryAfter, time.Second},
		{"transport error last attempt", nil, transportErr, 2, Failure, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := p.Classify(tt.resp, tt.err, tt.attempt)
			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, tt.wantDelay, out.Delay)
			if tt.wantKind == Failure {
				assert.ErrorIs(t, out.Err, transportErr)
			}
		})
	}
}

func TestDriver_SucceedsAfterRateLimits(t *testing.T) {
	sleeper := &recordingSleep{}
	d := NewDriver(DefaultPolicy(), sleeper.Sleep, zerolog.Nop())

	statuses := []int{429, 429, 200}
	calls := 0
	resp, err := d.Do(context.Background(), func(ctx context.Context) (*http.Response, error) {
		r := response(statuses[calls])
		calls++
		return r, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
}

func TestDriver_ReturnsFinalRateLimitedResponse(t *testing.T) {
	sleeper := &recordingSleep{}
	d := NewDriver(DefaultPolicy(), sleeper.Sleep, zerolog.Nop())

	calls := 0
	resp, err := d.Do(context.Background(), func(ctx context.Context) (*http.Response, error) {
		calls++
		return response(429), nil
	})

	require.NoError(t, err)
	assert.Equal(t, 429, resp.StatusCode)
	assert.Equal(t, 3, calls)
	assert.Len(t, sleeper.delays, 2)
}

func TestDriver_NonRetryableStatusShortCircuits(t *testing.T) {
	sleeper := &recordingSleep{}
	d := NewDriver(DefaultPolicy(), sleeper.Sleep, zerolog.Nop())

	calls := 0
	resp, err := d.Do(context.Background(), func(ctx context.Context) (*http.Response, error) {
		calls++
		return response(500), nil
	})

	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
}

func TestDriver_TransportErrorExhausted(t *testing.T) {
	sleeper := &recordingSleep{}
	d := NewDriver(DefaultPolicy(), sleeper.Sleep, zerolog.Nop())
	dialErr := errors.New("dial tcp: connection refused")

	calls := 0
	_, err := d.Do(context.Background(), func(ctx context.Context) (*http.Response, error) {
		calls++
		return nil, dialErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, dialErr)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
}

func TestDriver_TransportErrorThenSuccess(t *testing.T) {
	sleeper := &recordingSleep{}
	d := NewDriver(DefaultPolicy(), sleeper.Sleep, zerolog.Nop())

	calls := 0
	resp, err := d.Do(context.Background(), func(ctx context.Context) (*http.Response, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection reset")
		}
		return response(200), nil
	})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []time.Duration{time.Second}, sleeper.delays)
}

func TestDriver_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDriver(DefaultPolicy(), nil, zerolog.Nop())

	calls := 0
	_, err := d.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		calls++
		return response(429), nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDriver_ZeroAttempts(t *testing.T) {
	d := NewDriver(Policy{}, nil, zerolog.Nop())

	_, err := d.Do(context.Background(), func(ctx context.Context) (*http.Response, error) {
		t.Fatal("attempt should not be called")
		return nil, nil
	})
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "retry_after", RetryAfter.String())
	assert.Equal(t, "failure", Failure.String())
}
