// Package ratelimit tracks the API's request budget across parallel workers
// and client processes. 429 responses set a shared block-until timestamp from
// Retry-After; X-RateLimit-Remaining headers feed a throttle threshold. State
// lives in Redis so every worker hitting the same key space backs off together.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyRemaining    = "mapi:rate_limit:remaining"
	RedisKeyBlockedUntil = "mapi:rate_limit:blocked_until"
	RedisKeyLastUpdate   = "mapi:rate_limit:last_update"
)

// Thresholds for rate limit decisions.
const (
	// RemainingThresholdThrottle applies a short delay when the remaining
	// request budget falls below this value.
	RemainingThresholdThrottle = 10

	// RemainingThresholdHealthy indicates normal operation.
	RemainingThresholdHealthy = 50
)

// State is the shared rate limit state.
type State struct {
	// Remaining is the request budget left in the current window, from the
	// X-RateLimit-Remaining header. Negative means the server never sent it.
	Remaining int `json:"remaining"`

	// BlockedUntil is set after a 429, from Retry-After. Requests are held
	// until this passes.
	BlockedUntil time.Time `json:"blocked_until"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`
}

// IsBlocked returns true while a 429 block is in effect.
func (s *State) IsBlocked() bool {
	return time.Now().Before(s.BlockedUntil)
}

// NeedsThrottling returns true when the remaining budget is low but requests
// are not blocked outright.
func (s *State) NeedsThrottling() bool {
	return s.Remaining >= 0 && s.Remaining < RemainingThresholdThrottle && !s.IsBlocked()
}

// IsHealthy returns true when no restriction applies.
func (s *State) IsHealthy() bool {
	return !s.IsBlocked() && (s.Remaining < 0 || s.Remaining >= RemainingThresholdHealthy)
}

// TimeUntilUnblocked returns how long until the 429 block lifts.
// Returns 0 if not blocked.
func (s *State) TimeUntilUnblocked() time.Duration {
	d := time.Until(s.BlockedUntil)
	if d < 0 {
		return 0
	}
	return d
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}
