package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for shared rate limit tracking.
var (
	webapiSharedPausesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webapi_rate_limit_shared_pauses_total",
		Help: "Total number of pause deadlines published to the shared store",
	})

	webapiSharedWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webapi_rate_limit_shared_wait_seconds",
		Help:    "Time spent waiting on a pause published by another client",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})
)

// Tracker shares rate limit pauses between client instances via Redis.
type Tracker struct {
	redis  *redis.Client
	key    string
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		key:    RedisKeyPausedUntil,
		logger: logger,
	}
}

// WithKey returns a tracker publishing under a different key, so unrelated
// workspaces sharing one Redis do not stall each other.
func (t *Tracker) WithKey(key string) *Tracker {
	clone := *t
	clone.key = key
	return &clone
}

// GetState retrieves the shared pause state.
// A missing key means no pause is active.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	raw, err := t.redis.Get(ctx, t.key).Result()
	if err == redis.Nil {
		return &RateLimitState{LastUpdate: time.Now()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get paused until: %w", err)
	}

	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse paused until: %w", err)
	}

	return &RateLimitState{
		PausedUntil: time.UnixMilli(millis),
		LastUpdate:  time.Now(),
	}, nil
}

// Record publishes a pause of the given length. An existing longer pause is
// kept.
func (t *Tracker) Record(ctx context.Context, retryAfter time.Duration) error {
	if retryAfter <= 0 {
		return nil
	}

	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(retryAfter)
	if state.PausedUntil.After(deadline) {
		return nil
	}

	if err := t.redis.Set(ctx, t.key, deadline.UnixMilli(), retryAfter).Err(); err != nil {
		return fmt.Errorf("store paused until in redis: %w", err)
	}

	webapiSharedPausesTotal.Inc()
	t.logger.Warn().
		Dur("retry_after", retryAfter).
		Time("paused_until", deadline).
		Msg("Published shared rate limit pause")

	return nil
}

// Wait blocks until any shared pause has elapsed or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}

	wait := state.TimeUntilResume()
	if wait <= 0 {
		return nil
	}

	t.logger.Debug().
		Dur("wait_duration", wait).
		Msg("Waiting on shared rate limit pause")

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	webapiSharedWaitSeconds.Observe(wait.Seconds())
	return nil
}

// Clear removes any shared pause.
func (t *Tracker) Clear(ctx context.Context) error {
	if err := t.redis.Del(ctx, t.key).Err(); err != nil {
		return fmt.Errorf("clear paused until: %w", err)
	}
	return nil
}
