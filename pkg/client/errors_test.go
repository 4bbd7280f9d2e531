package client

import (
	"errors"
	"net/http"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{
			name:       "client error should not retry",
			errorClass: ErrorClassClient,
			expected:   false,
		},
		{
			name:       "server error should retry",
			errorClass: ErrorClassServer,
			expected:   true,
		},
		{
			name:       "rate limit should retry",
			errorClass: ErrorClassRateLimit,
			expected:   true,
		},
		{
			name:       "network error should retry",
			errorClass: ErrorClassNetwork,
			expected:   true,
		},
		{
			name:       "empty error class should not retry",
			errorClass: "",
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shouldRetry(tt.errorClass)
			if result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected ErrorClass
	}{
		{name: "200 has no class", status: http.StatusOK, expected: ""},
		{name: "404 is client", status: http.StatusNotFound, expected: ErrorClassClient},
		{name: "429 is rate limit", status: http.StatusTooManyRequests, expected: ErrorClassRateLimit},
		{name: "500 is server", status: http.StatusInternalServerError, expected: ErrorClassServer},
		{name: "503 is server", status: http.StatusServiceUnavailable, expected: ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.expected {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestRestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *RestError
		expected string
	}{
		{
			name: "server rejection with status",
			err: &RestError{
				StatusCode: 404,
				URL:        "https://api.example.org/materials/summary/?_limit=10",
				Message:    "Not found",
			},
			expected: "REST query returned with error status code 404 on URL " +
				"https://api.example.org/materials/summary/?_limit=10 with message: Not found",
		},
		{
			name: "transport failure without status",
			err: &RestError{
				URL:     "https://api.example.org/materials/summary/",
				Message: "connection refused",
			},
			expected: "REST query failed on URL https://api.example.org/materials/summary/: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRestError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &RestError{URL: "u", Message: "m", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("RestError does not unwrap to the inner error")
	}
}

func TestRequestTimeoutError_Error(t *testing.T) {
	err := &RequestTimeoutError{URL: "https://api.example.org/materials/summary/"}
	expected := "REST query timed out on URL https://api.example.org/materials/summary/. " +
		"Try again with a smaller request."
	if got := err.Error(); got != expected {
		t.Errorf("Error() = %q, want %q", got, expected)
	}
}

func TestParseDetail(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "string detail",
			body:     `{"detail": "Entry not found"}`,
			expected: "Entry not found",
		},
		{
			name:     "single validation entry",
			body:     `{"detail": [{"loc": ["query", "chemsys"], "msg": "value is not a valid list"}]}`,
			expected: "chemsys - value is not a valid list",
		},
		{
			name: "multiple validation entries joined",
			body: `{"detail": [` +
				`{"loc": ["query", "band_gap_min"], "msg": "value is not a valid float"},` +
				`{"loc": ["query", "nsites_max"], "msg": "value is not a valid integer"}]}`,
			expected: "band_gap_min - value is not a valid float, nsites_max - value is not a valid integer",
		},
		{
			name:     "entry without location",
			body:     `{"detail": [{"msg": "malformed query"}]}`,
			expected: "malformed query",
		},
		{
			name:     "non-envelope body falls back to raw",
			body:     `upstream proxy error`,
			expected: "Response upstream proxy error",
		},
		{
			name:     "empty body falls back to raw",
			body:     ``,
			expected: "Response ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseDetail([]byte(tt.body)); got != tt.expected {
				t.Errorf("parseDetail(%q) = %q, want %q", tt.body, got, tt.expected)
			}
		})
	}
}
