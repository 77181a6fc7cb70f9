package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	webapiRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webapi_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	webapiRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webapi_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 300},
	}, []string{"error_class"})

	webapiRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webapi_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryPolicy controls how often and how far apart failed exchanges are
// retried. The delay before retry n (1-based) is
// MinTimeout * Factor^(n-1), clamped to MaxTimeout.
type RetryPolicy struct {
	// Retries is the number of retries after the first attempt.
	Retries int

	// Factor is the exponential growth factor between delays.
	Factor float64

	// MinTimeout is the delay before the first retry.
	MinTimeout time.Duration

	// MaxTimeout caps every delay. Zero means no cap.
	MaxTimeout time.Duration

	// Randomize multiplies each delay by a random value in [1, 2) before
	// it is clamped to [MinTimeout, MaxTimeout].
	Randomize bool
}

// Retry policy presets.
var (
	// TenRetriesInAboutThirtyMinutes is the default policy.
	TenRetriesInAboutThirtyMinutes = RetryPolicy{
		Retries:    10,
		Factor:     1.96821,
		MinTimeout: time.Second,
		Randomize:  true,
	}

	// FiveRetriesInFiveMinutes suits interactive callers.
	FiveRetriesInFiveMinutes = RetryPolicy{
		Retries:    5,
		Factor:     3.86,
		MinTimeout: time.Second,
	}

	// NoRetryPolicy makes a single attempt. A zero RetryPolicy in Config is
	// replaced by the default, so use this to turn retries off.
	NoRetryPolicy = RetryPolicy{
		Retries: 0,
		Factor:  1,
	}

	// RapidRetryPolicy retries almost immediately; mostly useful in tests.
	RapidRetryPolicy = RetryPolicy{
		Retries:    10,
		Factor:     2,
		MinTimeout: 0,
		MaxTimeout: time.Millisecond,
	}
)

// Validate reports whether the policy can drive retries.
func (p RetryPolicy) Validate() error {
	if p.Retries < 0 {
		return fmt.Errorf("retries must be >= 0 (got %d)", p.Retries)
	}
	if p.Factor < 1 {
		return fmt.Errorf("retry factor must be >= 1 (got %v)", p.Factor)
	}
	if p.MinTimeout < 0 || p.MaxTimeout < 0 {
		return fmt.Errorf("retry timeouts must not be negative")
	}
	if p.MaxTimeout > 0 && p.MinTimeout > p.MaxTimeout {
		return fmt.Errorf("retry min timeout %v exceeds max timeout %v", p.MinTimeout, p.MaxTimeout)
	}
	return nil
}

// newBackOff builds the backoff schedule for one call.
func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.MinTimeout
	exp.Multiplier = p.Factor
	exp.MaxInterval = p.MaxTimeout
	if exp.MaxInterval == 0 {
		exp.MaxInterval = time.Duration(math.MaxInt64)
	}
	exp.RandomizationFactor = 0
	// Attempts are bounded by Retries only.
	exp.MaxElapsedTime = 0
	exp.Reset()

	var b backoff.BackOff = exp
	if p.Randomize {
		b = &jitterBackOff{BackOff: exp, min: p.MinTimeout, max: p.MaxTimeout, random: rand.Float64}
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Retries)), ctx)
}

// jitterBackOff scales each delay of the wrapped schedule by 1+random()
// and clamps the result to [min, max]. A zero max means no upper bound.
type jitterBackOff struct {
	backoff.BackOff
	min, max time.Duration
	random   func() float64
}

func (j *jitterBackOff) NextBackOff() time.Duration {
	d := j.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}

	scaled := float64(d) * (1 + j.random())
	if scaled >= math.MaxInt64 {
		d = time.Duration(math.MaxInt64)
	} else {
		d = time.Duration(scaled)
	}

	if d < j.min {
		d = j.min
	}
	if j.max > 0 && d > j.max {
		d = j.max
	}
	return d
}

// abort marks err as not retryable.
func abort(err error) error {
	return backoff.Permanent(err)
}

// retry runs attempt under policy until it succeeds, returns an aborting
// error, or the retries run out. The attempt number passed to fn starts at 1.
func retry(ctx context.Context, policy RetryPolicy, logger zerolog.Logger, fn func(attempt int) error) error {
	var (
		attempt int
		aborted bool
	)

	operation := func() error {
		attempt++
		err := fn(attempt)
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			aborted = true
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		class := string(classifyError(err))
		webapiRetriesTotal.WithLabelValues(class).Inc()
		webapiRetryBackoffSeconds.WithLabelValues(class).Observe(wait.Seconds())

		logger.Debug().
			Err(err).
			Str("error_class", class).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")
	}

	err := backoff.RetryNotify(operation, policy.newBackOff(ctx), notify)
	if err == nil {
		if attempt > 1 {
			logger.Info().
				Int("attempt", attempt).
				Msg("Request succeeded after retry")
		}
		return nil
	}

	if !aborted && ctx.Err() == nil {
		class := string(classifyError(err))
		webapiRetryExhaustedTotal.WithLabelValues(class).Inc()
		logger.Error().
			Err(err).
			Str("error_class", class).
			Int("attempts", attempt).
			Msg("Retry attempts exhausted")
	}

	return err
}
