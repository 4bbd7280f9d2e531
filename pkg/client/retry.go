package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	mapiRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mapi_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	mapiRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mapi_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	mapiRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mapi_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for transport retry logic.
//
// Retry lives in the transport: the dispatcher above it never retries, it
// only maps final failures to typed errors.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the initial request.
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retryConfigForErrorClass returns the retry configuration for an error class.
func retryConfigForErrorClass(errorClass ErrorClass) RetryConfig {
	switch errorClass {
	case ErrorClassServer:
		// 5xx server errors, shorter backoff
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
		}
	case ErrorClassRateLimit:
		// 429, longer backoff and Retry-After takes precedence
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    5 * time.Second,
			MaxBackoff:        60 * time.Second,
			BackoffMultiplier: 2.0,
		}
	case ErrorClassNetwork:
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    2 * time.Second,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
		}
	default:
		return DefaultRetryConfig()
	}
}

// retryWithBackoff executes fn with exponential backoff retry logic. fn
// reports retriable failures as *retryableError; any other error returns
// immediately. Retry-After hints override the computed backoff when longer.
// Jitter (±20%) prevents parallel workers from retrying in lockstep.
func retryWithBackoff(ctx context.Context, logger zerolog.Logger, fn func() error) error {
	var lastErr error
	var lastClass ErrorClass
	backoff := time.Duration(0)

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("error_class", string(lastClass)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		var retriable *retryableError
		if !errors.As(err, &retriable) || !shouldRetry(retriable.class) {
			// Terminal failure, not the transport's to handle
			return err
		}

		lastErr = retriable.err
		lastClass = retriable.class
		config := retryConfigForErrorClass(retriable.class)

		if backoff == 0 {
			backoff = config.InitialBackoff
		}

		if attempt >= config.MaxAttempts {
			break
		}

		mapiRetriesTotal.WithLabelValues(string(retriable.class)).Inc()

		// Jitter (±20%), but never undercut an explicit Retry-After
		wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		if retriable.retryAfter > wait {
			wait = retriable.retryAfter
		}
		mapiRetryBackoffSeconds.WithLabelValues(string(retriable.class)).Observe(wait.Seconds())

		logger.Debug().
			Str("error_class", string(retriable.class)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Str("error_class", string(retriable.class)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(wait):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	mapiRetryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	logger.Warn().
		Str("error_class", string(lastClass)).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w: %v", ErrRetryExhausted, lastErr)
}
