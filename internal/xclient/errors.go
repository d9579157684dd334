package xclient

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrRateLimited matches any error caused by the API answering 429.
	ErrRateLimited = errors.New("x api: rate limited")
	// ErrRemoteAPI matches every other client or protocol failure.
	ErrRemoteAPI = errors.New("x api: request failed")
)

// RateLimitError is returned when X throttles a request. The client never
// waits on it; Reset is informational.
type RateLimitError struct {
	Endpoint  string
	Limit     int
	Remaining int
	Reset     time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return fmt.Sprintf("x api %s: rate limited", e.Endpoint)
	}
	return fmt.Sprintf("x api %s: rate limited until %s", e.Endpoint, e.Reset.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

func newRateLimitError(endpoint string, h http.Header) *RateLimitError {
	e := &RateLimitError{Endpoint: endpoint, Limit: -1, Remaining: -1}
	if v, err := strconv.Atoi(h.Get("x-rate-limit-limit")); err == nil {
		e.Limit = v
	}
	if v, err := strconv.Atoi(h.Get("x-rate-limit-remaining")); err == nil {
		e.Remaining = v
	}
	if v, err := strconv.ParseInt(h.Get("x-rate-limit-reset"), 10, 64); err == nil && v > 0 {
		e.Reset = time.Unix(v, 0).UTC()
	}
	return e
}

// APIError covers transport failures, non-2xx answers and undecodable bodies.
type APIError struct {
	Endpoint   string
	StatusCode int
	Detail     string
	Err        error
}

func (e *APIError) Error() string {
	msg := "x api " + e.Endpoint
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) Is(target error) bool { return target == ErrRemoteAPI }
