package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all transport retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
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
)

// RestError is returned when the server rejected a request with a non-200
// status, or the transport failed outright.
type RestError struct {
	StatusCode int
	URL        string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *RestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("REST query returned with error status code %d on URL %s with message: %s",
			e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("REST query failed on URL %s: %s", e.URL, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RestError) Unwrap() error {
	return e.Err
}

// RequestTimeoutError signals that a request timed out and the caller should
// retry with a smaller request (smaller chunk size or fewer parallel fields).
type RequestTimeoutError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("REST query timed out on URL %s. Try again with a smaller request.", e.URL)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RequestTimeoutError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports invalid local arguments, e.g. a non-positive
// chunk size.
type ConfigurationError struct {
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + e.Reason
}

// retryableError marks an attempt failure the transport may retry.
type retryableError struct {
	class      ErrorClass
	retryAfter time.Duration
	err        error
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("%s error: %v", e.class, e.err)
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// shouldRetry determines if an error class should be retried by the transport.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors are deterministic and should NOT be retried
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		// 429, retried after backoff / Retry-After
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// errorDetail is the error envelope shape of the API:
// {"detail": "message"} or {"detail": [{"loc": [...], "msg": "..."}]}.
type errorDetail struct {
	Detail json.RawMessage `json:"detail"`
}

type detailEntry struct {
	Loc []json.RawMessage `json:"loc"`
	Msg string            `json:"msg"`
}

// parseDetail extracts a best-effort human message from an error response
// body. A list of field/message pairs is joined into one readable message.
func parseDetail(body []byte) string {
	var envelope errorDetail
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return "Response " + string(body)
	}

	var message string
	if err := json.Unmarshal(envelope.Detail, &message); err == nil {
		return message
	}

	var entries []detailEntry
	if err := json.Unmarshal(envelope.Detail, &entries); err != nil {
		return "Response " + string(body)
	}

	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		loc := ""
		if len(entry.Loc) > 1 {
			_ = json.Unmarshal(entry.Loc[1], &loc)
			if loc == "" {
				loc = string(entry.Loc[1])
			}
		}
		if loc != "" {
			parts = append(parts, loc+" - "+entry.Msg)
		} else {
			parts = append(parts, entry.Msg)
		}
	}
	return strings.Join(parts, ", ")
}
