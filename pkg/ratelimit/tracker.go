package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	mapiRequestsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mapi_rate_limit_remaining",
		Help: "Request budget remaining in the current rate limit window",
	})

	mapiRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mapi_rate_limit_blocks_total",
		Help: "Total number of requests blocked while a 429 backoff is in effect",
	})

	mapiRateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mapi_rate_limit_throttles_total",
		Help: "Total number of requests throttled due to low remaining budget",
	})
)

// Tracker monitors the shared request budget and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState retrieves the current rate limit state from Redis.
// Returns a healthy default when no state exists yet.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	remaining, err := t.redis.Get(ctx, RedisKeyRemaining).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get remaining budget: %w", err)
	}
	if err == redis.Nil {
		remaining = -1
	}

	blockedUnix, err := t.redis.Get(ctx, RedisKeyBlockedUntil).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get blocked until: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	state := &State{
		Remaining:  remaining,
		LastUpdate: time.Now(),
	}
	if blockedUnix > 0 {
		state.BlockedUntil = time.Unix(blockedUnix, 0)
	}
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &state.LastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	return state, nil
}

// UpdateFromResponse records rate limit information from a response. A 429
// sets the shared block window from Retry-After; X-RateLimit-Remaining
// refreshes the budget gauge.
func (t *Tracker) UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error {
	now := time.Now()
	pipe := t.redis.Pipeline()
	dirty := false

	if remainStr := headers.Get("X-RateLimit-Remaining"); remainStr != "" {
		remain, err := strconv.Atoi(remainStr)
		if err != nil {
			return fmt.Errorf("parse X-RateLimit-Remaining header: %w", err)
		}
		pipe.Set(ctx, RedisKeyRemaining, remain, 0)
		mapiRequestsRemaining.Set(float64(remain))
		dirty = true

		if remain < RemainingThresholdThrottle {
			t.logger.Warn().
				Int("remaining", remain).
				Msg("Rate limit budget low - requests will be throttled")
		}
	}

	if statusCode == http.StatusTooManyRequests {
		wait := parseRetryAfter(headers)
		if wait <= 0 {
			wait = 30 * time.Second
		}
		blockedUntil := now.Add(wait)
		pipe.Set(ctx, RedisKeyBlockedUntil, blockedUntil.Unix(), wait)
		dirty = true

		t.logger.Warn().
			Time("blocked_until", blockedUntil).
			Msg("Server returned 429 - blocking shared request budget")
	}

	if !dirty {
		return nil
	}

	lastUpdateJSON, err := json.Marshal(now)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	return nil
}

// ShouldAllowRequest checks if a request should be allowed.
// Returns false while a 429 block is in effect. Returns true but sleeps
// briefly when the remaining budget is low.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.IsBlocked() {
		t.logger.Warn().
			Dur("wait_duration", state.TimeUntilUnblocked()).
			Msg("Shared 429 backoff in effect - blocking request")

		mapiRateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Rate limit budget low - throttling request")

		mapiRateLimitThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}

	return true, nil
}

func parseRetryAfter(headers http.Header) time.Duration {
	raw := headers.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(raw); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}
