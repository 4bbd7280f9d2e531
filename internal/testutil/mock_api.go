// Package testutil provides testing utilities for the Materials API client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock API endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock Materials API server for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	RequestLog        []string
	LastRequestHeader http.Header
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.RequestLog = append(mock.RequestLog, r.URL.RequestURI())
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.RequestLog = nil
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetCollection serves a document collection at path with real query
// semantics: comma-valued equality filters on filterFields, _skip/_limit
// paging, _fields projection, and the standard data/meta envelope.
func (m *MockAPI) SetCollection(path string, docs []map[string]any, filterFields ...string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		matched := docs
		for _, field := range filterFields {
			raw := q.Get(field)
			if raw == "" {
				continue
			}
			wanted := make(map[string]struct{})
			for _, v := range strings.Split(raw, ",") {
				wanted[v] = struct{}{}
			}
			// Plural wire parameters filter on the singular document field
			// (material_ids matches each doc's material_id), as in the real API.
			docField := field
			if len(matched) > 0 {
				if _, ok := matched[0][docField]; !ok {
					docField = strings.TrimSuffix(field, "s")
				}
			}
			var kept []map[string]any
			for _, doc := range matched {
				if _, ok := wanted[fmt.Sprint(doc[docField])]; ok {
					kept = append(kept, doc)
				}
			}
			matched = kept
		}
		total := len(matched)

		skip, _ := strconv.Atoi(q.Get("_skip"))
		if skip > len(matched) {
			skip = len(matched)
		}
		matched = matched[skip:]

		if rawLimit := q.Get("_limit"); rawLimit != "" {
			limit, err := strconv.Atoi(rawLimit)
			if err == nil && limit < len(matched) {
				matched = matched[:limit]
			}
		}

		page := matched
		if rawFields := q.Get("_fields"); rawFields != "" {
			fields := strings.Split(rawFields, ",")
			page = make([]map[string]any, len(matched))
			for i, doc := range matched {
				slim := make(map[string]any, len(fields))
				for _, f := range fields {
					if v, ok := doc[f]; ok {
						slim[f] = v
					}
				}
				page[i] = slim
			}
		}

		body, _ := json.Marshal(map[string]any{
			"data": page,
			"meta": map[string]any{
				"total_doc":  total,
				"time_stamp": time.Now().UTC().Format(time.RFC3339),
			},
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequestLog returns the request URIs seen so far, in arrival order.
func (m *MockAPI) GetRequestLog() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.RequestLog...)
}

// defaultHandler returns an empty successful envelope.
func (m *MockAPI) defaultHandler(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"data": [], "meta": {"total_doc": 0}}`))
}

// NewEnvelopeResponse creates a 200 response with a data/meta envelope.
func NewEnvelopeResponse(data string, totalDoc int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"data": %s, "meta": {"total_doc": %d, "time_stamp": "2024-01-01T00:00:00Z"}}`, data, totalDoc),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewDetailResponse creates an error response with a string detail message.
func NewDetailResponse(statusCode int, detail string) MockResponse {
	body, _ := json.Marshal(map[string]string{"detail": detail})
	return MockResponse{
		StatusCode: statusCode,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"detail": "Too many requests"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Retry-After":  retryAfter,
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"detail": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}
