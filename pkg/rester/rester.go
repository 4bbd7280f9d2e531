// Package rester provides the high-level search surface over the Materials
// API: declarative endpoint descriptors, filter translation, and the choice
// between paginated retrieval and the bulk object-store path.
package rester

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/materialsproject/mp-api-go/pkg/client"
	"github.com/materialsproject/mp-api-go/pkg/document"
	"github.com/materialsproject/mp-api-go/pkg/logging"
	"github.com/materialsproject/mp-api-go/pkg/objectstore"
	"github.com/materialsproject/mp-api-go/pkg/pagination"
	"github.com/materialsproject/mp-api-go/pkg/progress"
	"github.com/materialsproject/mp-api-go/pkg/query"
)

// NotFoundError is returned when a record lookup by primary key matches
// nothing.
type NotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("No result for record %s.", e.ID)
}

// Rester executes searches against one API endpoint.
type Rester struct {
	endpoint  Endpoint
	client    *client.Client
	paginator *pagination.Paginator
	store     *objectstore.Store
	dbVersion string
	logger    zerolog.Logger
}

// Option configures a Rester.
type Option func(*Rester)

// WithObjectStore enables the bulk object-store path for unfiltered,
// uncapped queries against the given database release version.
func WithObjectStore(store *objectstore.Store, dbVersion string) Option {
	return func(r *Rester) {
		r.store = store
		r.dbVersion = dbVersion
	}
}

// New creates a Rester for endpoint on top of the given client.
func New(c *client.Client, cfg pagination.Config, endpoint Endpoint, opts ...Option) *Rester {
	r := &Rester{
		endpoint:  endpoint,
		client:    c,
		paginator: pagination.New(c, cfg),
		logger:    logging.NewLogger("rester"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SearchOptions control one Search invocation.
type SearchOptions struct {
	// Fields projects the response to the named fields. Empty requests all
	// fields.
	Fields []string

	// SortFields orders results server-side; prefix a field with "-" for
	// descending order.
	SortFields []string

	// ChunkSize is the number of documents per page (0 = default).
	ChunkSize int

	// NumChunks caps the number of pages retrieved (0 = all).
	NumChunks int

	// Timeout overrides the per-request timeout.
	Timeout time.Duration

	// Sink receives progress updates. Nil disables progress reporting.
	Sink progress.Sink
}

// SearchResult is a materialized search response.
type SearchResult struct {
	// Records are the typed record views, in retrieval order.
	Records []*document.Record

	// Meta carries the final metadata block; TotalDoc is the server-side
	// matching-document count.
	Meta client.Meta

	// Shortfall is how many requested documents the server could not
	// provide (0 when fully satisfied).
	Shortfall int
}

// Search retrieves all documents matching filters, materialized against the
// endpoint schema. Unfiltered, uncapped queries go through the bulk object
// store when one is configured; everything else paginates the query endpoint.
func (r *Rester) Search(ctx context.Context, filters map[string]any, opts SearchOptions) (*SearchResult, error) {
	wire, err := r.endpoint.translate(filters)
	if err != nil {
		return nil, err
	}

	criteria := query.Normalize(wire, opts.Fields, true)
	if len(opts.SortFields) > 0 {
		criteria[query.SortFieldsKey] = query.EncodeValue(opts.SortFields)
	}

	if r.store != nil && opts.NumChunks == 0 && !criteria.HasUserFilters() {
		return r.searchObjectStore(ctx, opts)
	}

	agg, err := r.paginator.Paginate(ctx, r.endpoint.Suffix, criteria, pagination.Options{
		ChunkSize: opts.ChunkSize,
		NumChunks: opts.NumChunks,
		Timeout:   opts.Timeout,
		Sink:      opts.Sink,
	})
	if err != nil {
		return nil, err
	}

	records, err := document.Materialize(agg.Data, r.endpoint.Schema, opts.Fields)
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		Records:   records,
		Meta:      agg.Meta,
		Shortfall: agg.Shortfall,
	}, nil
}

// searchObjectStore serves a "get everything" query from the content bucket.
func (r *Rester) searchObjectStore(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	r.logger.Info().
		Str("suburl", r.endpoint.Suffix).
		Str("collection", r.endpoint.Collection).
		Str("db_version", r.dbVersion).
		Msg("Unfiltered query, using bulk object store")

	docs, err := r.store.FetchCollection(ctx, r.endpoint.Collection, r.dbVersion, opts.Fields, opts.Sink)
	if err != nil {
		return nil, err
	}

	records, err := document.Materialize(docs, r.endpoint.Schema, opts.Fields)
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		Records: records,
		Meta:    client.Meta{TotalDoc: len(records)},
	}, nil
}

// Count returns the number of documents matching filters without retrieving
// them: a single one-document page whose metadata reports the total.
func (r *Rester) Count(ctx context.Context, filters map[string]any) (int, error) {
	wire, err := r.endpoint.translate(filters)
	if err != nil {
		return 0, err
	}

	criteria := query.Normalize(wire, []string{r.endpoint.PrimaryKey}, false)

	agg, err := r.paginator.Paginate(ctx, r.endpoint.Suffix, criteria, pagination.Options{
		ChunkSize: 1,
		NumChunks: 1,
	})
	if err != nil {
		return 0, err
	}
	return agg.Meta.TotalDoc, nil
}

// GetByID retrieves the single record with the given primary key value.
// Empty fields requests all fields.
func (r *Rester) GetByID(ctx context.Context, id string, fields []string) (*document.Record, error) {
	criteria := query.Normalize(nil, fields, true)
	criteria.SetInt(query.LimitKey, 1)

	suburl := r.endpoint.Suffix + "/" + id
	page, _, err := r.client.FetchPage(ctx, suburl, criteria, 0)
	if err != nil {
		return nil, err
	}
	if len(page.Data) == 0 {
		return nil, &NotFoundError{ID: id}
	}

	records, err := document.Materialize(page.Data[:1], r.endpoint.Schema, fields)
	if err != nil {
		return nil, err
	}
	return records[0], nil
}
