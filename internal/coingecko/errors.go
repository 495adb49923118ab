package coingecko

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRateLimited matches a StatusError carrying HTTP 429.
var ErrRateLimited = errors.New("rate limited by coingecko")

// ErrNullPayload is returned when a 2xx response body is the JSON literal null.
var ErrNullPayload = errors.New("response body is null")

// StatusError is returned when the final upstream response is not 2xx.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("coingecko: HTTP error status %d for %s", e.StatusCode, e.URL)
}

// Is lets errors.Is(err, ErrRateLimited) match a 429.
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// StatusCode extracts the upstream status from err, or 0 if err carries none.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
