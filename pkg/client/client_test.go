package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/materialsproject/mp-api-go/internal/testutil"
	"github.com/materialsproject/mp-api-go/pkg/query"
)

func newTestClient(t *testing.T, mock *testutil.MockAPI) *Client {
	t.Helper()
	c, err := New(Config{
		Endpoint: mock.URL(),
		APIKey:   "test-api-key",
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		_, err := New(Config{})
		var confErr *ConfigurationError
		if !errors.As(err, &confErr) {
			t.Errorf("expected ConfigurationError, got %v", err)
		}
	})

	t.Run("applies defaults", func(t *testing.T) {
		c, err := New(Config{APIKey: "key"})
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		if c.Endpoint() != DefaultEndpoint {
			t.Errorf("endpoint = %q, want %q", c.Endpoint(), DefaultEndpoint)
		}
		if !strings.HasPrefix(c.config.UserAgent, "mp-api-go/"+Version) {
			t.Errorf("user agent = %q, want mp-api-go/%s prefix", c.config.UserAgent, Version)
		}
	})

	t.Run("normalizes endpoint trailing slash", func(t *testing.T) {
		c, err := New(Config{APIKey: "key", Endpoint: "https://api.example.org"})
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		if c.Endpoint() != "https://api.example.org/" {
			t.Errorf("endpoint = %q, want trailing slash", c.Endpoint())
		}
	})
}

func TestFetchPage_Success(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/materials/summary/", testutil.NewEnvelopeResponse(
		`[{"material_id": "mp-149"}, {"material_id": "mp-13"}]`, 42))

	c := newTestClient(t, mock)

	page, subtotal, err := c.FetchPage(context.Background(), "materials/summary", query.Criteria{
		"_limit": "2",
	}, 0)
	if err != nil {
		t.Fatalf("FetchPage() error: %v", err)
	}

	if len(page.Data) != 2 {
		t.Errorf("page has %d documents, want 2", len(page.Data))
	}
	if subtotal != 42 {
		t.Errorf("subtotal = %d, want 42 from meta.total_doc", subtotal)
	}

	headers := mock.LastRequestHeader
	if got := headers.Get("x-api-key"); got != "test-api-key" {
		t.Errorf("x-api-key header = %q, want test-api-key", got)
	}
	if got := headers.Get("User-Agent"); !strings.HasPrefix(got, "mp-api-go/") {
		t.Errorf("User-Agent header = %q, want mp-api-go/ prefix", got)
	}
	if got := headers.Get("Accept"); got != "application/json" {
		t.Errorf("Accept header = %q, want application/json", got)
	}

	// Route suffixes are normalized with a trailing slash
	log := mock.GetRequestLog()
	if !strings.HasPrefix(log[0], "/materials/summary/?") {
		t.Errorf("request URI = %q, want /materials/summary/? prefix", log[0])
	}
}

func TestFetchPage_MissingMetaDefaultsSubtotal(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/materials/summary/mp-149/", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data": [{"material_id": "mp-149"}]}`,
	})

	c := newTestClient(t, mock)

	_, subtotal, err := c.FetchPage(context.Background(), "materials/summary/mp-149", nil, 0)
	if err != nil {
		t.Fatalf("FetchPage() error: %v", err)
	}
	if subtotal != 1 {
		t.Errorf("subtotal = %d, want default 1 without meta", subtotal)
	}
}

func TestFetchPage_BadRequestIsSoftFailure(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/materials/summary/", testutil.NewDetailResponse(
		http.StatusBadRequest, "query parameters not supported together"))

	c := newTestClient(t, mock)

	page, subtotal, err := c.FetchPage(context.Background(), "materials/summary", nil, 0)
	if err != nil {
		t.Fatalf("FetchPage() must not fail on 400, got: %v", err)
	}
	if len(page.Data) != 0 || subtotal != 0 {
		t.Errorf("expected empty page on 400, got %d documents, subtotal %d", len(page.Data), subtotal)
	}
}

func TestFetchPage_ErrorStatusCarriesDetail(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/materials/summary/", testutil.NewDetailResponse(
		http.StatusNotFound, "Entry not found"))

	c := newTestClient(t, mock)

	_, _, err := c.FetchPage(context.Background(), "materials/summary", query.Criteria{
		"material_ids": "mp-0",
	}, 0)

	var rest *RestError
	if !errors.As(err, &rest) {
		t.Fatalf("expected RestError, got %T: %v", err, err)
	}
	if rest.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rest.StatusCode)
	}
	if rest.Message != "Entry not found" {
		t.Errorf("message = %q, want extracted detail", rest.Message)
	}
	if !strings.Contains(rest.URL, "material_ids=mp-0") {
		t.Errorf("URL %q does not include the query parameters", rest.URL)
	}
}

func TestFetchPage_TimeoutBecomesRequestTimeoutError(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/materials/summary/", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data": []}`,
		Delay:      500 * time.Millisecond,
	})

	c := newTestClient(t, mock)

	// The outer context expires during retry backoff, so the original
	// per-request timeout is what surfaces
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, _, err := c.FetchPage(ctx, "materials/summary", nil, 50*time.Millisecond)

	var timeoutErr *RequestTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected RequestTimeoutError, got %T: %v", err, err)
	}
	if !strings.Contains(timeoutErr.Error(), "smaller request") {
		t.Errorf("timeout message %q missing remediation hint", timeoutErr.Error())
	}
}

func TestFetchPage_RetriesServerError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping backoff test in short mode")
	}

	mock := testutil.NewMockAPI()
	defer mock.Close()

	var calls atomic.Int64
	mock.SetHandler("/materials/summary/", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail": "upstream hiccup"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data": [{"material_id": "mp-149"}], "meta": {"total_doc": 1}}`))
	})

	c := newTestClient(t, mock)

	page, subtotal, err := c.FetchPage(context.Background(), "materials/summary", nil, 0)
	if err != nil {
		t.Fatalf("FetchPage() error after retry: %v", err)
	}
	if len(page.Data) != 1 || subtotal != 1 {
		t.Errorf("got %d documents, subtotal %d, want 1 and 1", len(page.Data), subtotal)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls, want 2 (one failure, one retry)", calls.Load())
	}
}

func TestPost(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	t.Run("success decodes envelope", func(t *testing.T) {
		mock.SetHandler("/materials/structure/find/", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("method = %s, want POST", r.Method)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"data": [{"material_id": "mp-149"}], "meta": {"total_doc": 1}}`))
		})

		c := newTestClient(t, mock)
		page, err := c.Post(context.Background(), "materials/structure/find", map[string]any{
			"lattice": []float64{1, 0, 0},
		}, nil)
		if err != nil {
			t.Fatalf("Post() error: %v", err)
		}
		if len(page.Data) != 1 {
			t.Errorf("page has %d documents, want 1", len(page.Data))
		}
	})

	t.Run("non-200 raises RestError", func(t *testing.T) {
		mock.SetResponse("/materials/structure/find/", testutil.NewDetailResponse(
			http.StatusUnprocessableEntity, "invalid structure"))

		c := newTestClient(t, mock)
		_, err := c.Post(context.Background(), "materials/structure/find", map[string]any{}, nil)

		var rest *RestError
		if !errors.As(err, &rest) {
			t.Fatalf("expected RestError, got %T: %v", err, err)
		}
		if rest.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rest.StatusCode)
		}
	})
}

func TestDatabaseVersion(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	t.Run("returns db_version from heartbeat", func(t *testing.T) {
		mock.SetResponse("/heartbeat", testutil.MockResponse{
			StatusCode: http.StatusOK,
			Body:       `{"db_version": "2025.06.09", "version": "0.60.1"}`,
		})

		c := newTestClient(t, mock)
		version, err := c.DatabaseVersion(context.Background())
		if err != nil {
			t.Fatalf("DatabaseVersion() error: %v", err)
		}
		if version != "2025.06.09" {
			t.Errorf("version = %q, want 2025.06.09", version)
		}
	})

	t.Run("non-200 raises RestError", func(t *testing.T) {
		mock.SetResponse("/heartbeat", testutil.NewDetailResponse(
			http.StatusNotFound, "no heartbeat route"))

		c := newTestClient(t, mock)
		_, err := c.DatabaseVersion(context.Background())

		var rest *RestError
		if !errors.As(err, &rest) {
			t.Fatalf("expected RestError, got %T: %v", err, err)
		}
		if rest.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rest.StatusCode)
		}
	})
}

func TestPage_Subtotal(t *testing.T) {
	withMeta := &Page{Meta: &Meta{TotalDoc: 7}}
	if got := withMeta.Subtotal(); got != 7 {
		t.Errorf("Subtotal() = %d, want 7", got)
	}

	withoutMeta := &Page{}
	if got := withoutMeta.Subtotal(); got != 1 {
		t.Errorf("Subtotal() = %d, want 1 without meta", got)
	}
}
