package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/slack-webapi-client/pkg/result"
)

// ErrorCode identifies the kind of a client error.
type ErrorCode string

const (
	// CodeRequestError marks transport failures where no response was received.
	CodeRequestError ErrorCode = "slack_webapi_request_error"

	// CodeHTTPError marks responses with a status other than 200 or 429.
	CodeHTTPError ErrorCode = "slack_webapi_http_error"

	// CodePlatformError marks {ok: false} results.
	CodePlatformError ErrorCode = "slack_webapi_platform_error"

	// CodeRateLimitedError marks calls that hit the rate limit.
	CodeRateLimitedError ErrorCode = "slack_webapi_rate_limited_error"

	// CodeArgumentError marks invalid call arguments.
	CodeArgumentError ErrorCode = "slack_webapi_argument_error"
)

// CodedError is implemented by every error type the client returns.
type CodedError interface {
	error
	Code() ErrorCode
}

// RequestError wraps a transport failure where no response was received.
type RequestError struct {
	Original error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("a request error occurred: %v", e.Original)
}

// Code implements CodedError.
func (e *RequestError) Code() ErrorCode { return CodeRequestError }

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RequestError) Unwrap() error { return e.Original }

// HTTPError is returned for any HTTP status other than 200 and for 429
// responses without a usable Retry-After header.
type HTTPError struct {
	StatusCode    int
	StatusMessage string
	Header        http.Header
	Body          []byte
	Err           error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("an HTTP protocol error occurred: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("an HTTP protocol error occurred: status %d", e.StatusCode)
}

// Code implements CodedError.
func (e *HTTPError) Code() ErrorCode { return CodeHTTPError }

// Unwrap implements error unwrapping for errors.Is/As.
func (e *HTTPError) Unwrap() error { return e.Err }

// PlatformError is returned when the remote call reports ok: false.
type PlatformError struct {
	// ErrorCode is the remote error string, e.g. "channel_not_found".
	ErrorCode string
	Data      result.Result
}

// Error implements the error interface.
func (e *PlatformError) Error() string {
	return fmt.Sprintf("an API error occurred: %s", e.ErrorCode)
}

// Code implements CodedError.
func (e *PlatformError) Code() ErrorCode { return CodePlatformError }

// RateLimitedError is returned when a call was rate limited and either the
// client rejects rate limited calls or the retry budget ran out.
type RateLimitedError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("a rate limit was exceeded, retry after %d seconds", int(e.RetryAfter.Seconds()))
}

// Code implements CodedError.
func (e *RateLimitedError) Code() ErrorCode { return CodeRateLimitedError }

// ArgumentError is returned for call arguments that cannot be sent.
type ArgumentError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid call arguments: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid call arguments: %s", e.Reason)
}

// Code implements CodedError.
func (e *ArgumentError) Code() ErrorCode { return CodeArgumentError }

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ArgumentError) Unwrap() error { return e.Err }

// CodeOf returns the error code of a client error.
func CodeOf(err error) (ErrorCode, bool) {
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.Code(), true
	}
	return "", false
}

// IsPlatformError returns true if the remote call reported ok: false.
func IsPlatformError(err error) bool {
	var pe *PlatformError
	return errors.As(err, &pe)
}

// IsRateLimitedError returns true if the call was rate limited.
func IsRateLimitedError(err error) bool {
	var re *RateLimitedError
	return errors.As(err, &re)
}

// IsHTTPError returns true for unexpected HTTP statuses.
func IsHTTPError(err error) bool {
	var he *HTTPError
	return errors.As(err, &he)
}

// IsRequestError returns true for transport failures.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// ErrorClass represents a classification of errors for observability.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassPlatform represents ok: false results.
	ErrorClassPlatform ErrorClass = "platform"

	// ErrorClassArgument represents invalid call arguments.
	ErrorClassArgument ErrorClass = "argument"
)

// classifyError categorizes an error for metrics and logging.
func classifyError(err error) ErrorClass {
	var (
		httpErr  *HTTPError
		rateErr  *RateLimitedError
		platErr  *PlatformError
		argErr   *ArgumentError
		transErr *RequestError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &rateErr):
		return ErrorClassRateLimit
	case errors.As(err, &httpErr):
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return ErrorClassRateLimit
		case httpErr.StatusCode >= 500:
			return ErrorClassServer
		default:
			return ErrorClassClient
		}
	case errors.As(err, &platErr):
		return ErrorClassPlatform
	case errors.As(err, &argErr):
		return ErrorClassArgument
	case errors.As(err, &transErr):
		return ErrorClassNetwork
	default:
		return ErrorClassNetwork
	}
}
