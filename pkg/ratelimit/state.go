// Package ratelimit implements Web API rate limit (HTTP 429) handling support.
// It parses the Retry-After header and optionally shares pause deadlines between
// client instances through Redis so a whole fleet backs off together.
package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryAfterHeader is the response header carrying the advised wait in seconds.
const RetryAfterHeader = "Retry-After"

// Redis keys for shared rate limit state.
const (
	RedisKeyPausedUntil = "webapi:rate_limit:paused_until"
)

var (
	// ErrNoRetryAfter is returned when a response carries no Retry-After header.
	ErrNoRetryAfter = errors.New("retry-after header missing")

	// ErrInvalidRetryAfter is returned when the Retry-After header is not a
	// non-negative base-10 integer.
	ErrInvalidRetryAfter = errors.New("retry-after header invalid")
)

// ParseRetryAfter extracts the advised wait from the Retry-After header.
func ParseRetryAfter(headers http.Header) (time.Duration, error) {
	values := headers.Values(RetryAfterHeader)
	if len(values) == 0 {
		return 0, ErrNoRetryAfter
	}

	raw := strings.TrimSpace(values[0])
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRetryAfter, raw)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRetryAfter, raw)
	}

	return time.Duration(seconds) * time.Second, nil
}

// RateLimitState describes the pause currently imposed by the remote service.
type RateLimitState struct {
	// PausedUntil is when requests may resume. Zero means not paused.
	PausedUntil time.Time `json:"paused_until"`

	// LastUpdate is when this state was observed.
	LastUpdate time.Time `json:"last_update"`
}

// IsPaused returns true while the pause deadline is in the future.
func (s *RateLimitState) IsPaused() bool {
	return s.TimeUntilResume() > 0
}

// TimeUntilResume returns the remaining pause.
// Returns 0 if the deadline has already passed.
func (s *RateLimitState) TimeUntilResume() time.Duration {
	if s.PausedUntil.IsZero() {
		return 0
	}
	duration := time.Until(s.PausedUntil)
	if duration < 0 {
		return 0
	}
	return duration
}

// IsStale returns true if the state is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}
