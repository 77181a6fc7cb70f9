package client

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/slack-webapi-client/pkg/ratelimit"
	"github.com/Sternrassler/slack-webapi-client/pkg/result"
	"github.com/rs/zerolog"
)

// attempt performs one exchange: it waits out any shared pause, takes a
// queue slot, and sends the request. The returned error is either nil, an
// abort, or a retryable failure.
func (c *Client) attempt(ctx context.Context, logger zerolog.Logger, method string, req *request) (result.Response, error) {
	if c.tracker != nil {
		if err := c.tracker.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return result.Response{}, abort(&RequestError{Original: ctx.Err()})
			}
			logger.Warn().Err(err).Msg("Shared rate limit check failed")
		}
	}

	var resp result.Response
	err := c.queue.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.exchange(ctx, logger, method, req)
		return err
	})
	if err != nil && ctx.Err() != nil && err == ctx.Err() {
		// Cancelled while waiting for a slot.
		return resp, abort(&RequestError{Original: err})
	}
	return resp, err
}

// exchange sends one HTTP request while holding a queue slot and
// classifies the response.
func (c *Client) exchange(ctx context.Context, logger zerolog.Logger, method string, req *request) (result.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return result.Response{}, abort(&RequestError{Original: err})
		}
	}

	logger.Debug().Str("path", req.path).Msg("Sending request")

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(req.headers).
		SetBody(req.body).
		Post(req.path)
	if err != nil {
		webapiRequestsTotal.WithLabelValues(method, "network_error").Inc()
		logger.Warn().Err(err).Msg("HTTP request failed")

		reqErr := &RequestError{Original: err}
		if ctx.Err() != nil {
			return result.Response{}, abort(reqErr)
		}
		return result.Response{}, reqErr
	}

	raw := result.Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}
	webapiRequestsTotal.WithLabelValues(method, strconv.Itoa(raw.StatusCode)).Inc()

	switch raw.StatusCode {
	case http.StatusOK:
		return raw, nil
	case http.StatusTooManyRequests:
		return raw, c.handleRateLimited(ctx, logger, method, raw)
	default:
		logger.Warn().
			Int("status", raw.StatusCode).
			Msg("Unexpected HTTP status")
		return raw, abort(&HTTPError{
			StatusCode:    raw.StatusCode,
			StatusMessage: resp.Status(),
			Header:        raw.Header,
			Body:          raw.Body,
		})
	}
}

// handleRateLimited turns a 429 into an abort or, after waiting out the
// advised delay, a retryable RateLimitedError.
func (c *Client) handleRateLimited(ctx context.Context, logger zerolog.Logger, method string, raw result.Response) error {
	webapiRateLimitedTotal.WithLabelValues(method).Inc()

	retryAfter, err := ratelimit.ParseRetryAfter(raw.Header)
	if err != nil {
		logger.Error().Err(err).Msg("Rate limited without a usable Retry-After header")
		return abort(&HTTPError{
			StatusCode:    raw.StatusCode,
			StatusMessage: http.StatusText(raw.StatusCode),
			Header:        raw.Header,
			Body:          raw.Body,
			Err:           err,
		})
	}

	logger.Warn().
		Dur("retry_after", retryAfter).
		Bool("rejected", c.config.RejectRateLimitedCalls).
		Msg("Rate limited")

	c.emitRateLimited(RateLimitedEvent{
		Method:     method,
		RetryAfter: retryAfter,
		Rejected:   c.config.RejectRateLimitedCalls,
	})

	if c.config.RejectRateLimitedCalls {
		return abort(&RateLimitedError{RetryAfter: retryAfter})
	}

	if c.tracker != nil {
		if err := c.tracker.Record(ctx, retryAfter); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish shared rate limit pause")
		}
	}

	if c.config.RateLimitPauseScope == PauseClient {
		c.queue.Pause()
		defer c.queue.Resume()
	}

	timer := time.NewTimer(retryAfter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return abort(&RequestError{Original: ctx.Err()})
	case <-timer.C:
	}

	return &RateLimitedError{RetryAfter: retryAfter}
}
