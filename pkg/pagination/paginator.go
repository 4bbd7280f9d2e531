package pagination

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/materialsproject/mp-api-go/pkg/client"
	"github.com/materialsproject/mp-api-go/pkg/logging"
	"github.com/materialsproject/mp-api-go/pkg/parallel"
	"github.com/materialsproject/mp-api-go/pkg/progress"
	"github.com/materialsproject/mp-api-go/pkg/query"
)

// Paginator drives repeated rounds of (plan, parallel fetch, rebalance)
// until the caller's page budget or the total document count is exhausted.
type Paginator struct {
	client  *client.Client
	config  Config
	noSplit map[string]struct{}
	logger  zerolog.Logger
}

// New creates a paginator on top of the given dispatcher.
func New(c *client.Client, cfg Config) *Paginator {
	cfg = cfg.withDefaults()
	return &Paginator{
		client:  c,
		config:  cfg,
		noSplit: cfg.noSplitSet(),
		logger:  logging.NewLogger("paginator"),
	}
}

// Options control one Paginate invocation.
type Options struct {
	// ChunkSize is the number of documents per page. 0 uses the configured
	// default; negative is an error.
	ChunkSize int

	// NumChunks caps the number of pages retrieved. 0 retrieves all pages;
	// negative is an error.
	NumChunks int

	// Timeout overrides the per-request timeout.
	Timeout time.Duration

	// Sink receives progress updates. Nil disables progress reporting.
	Sink progress.Sink
}

// Aggregate is the merged result of a pagination run.
type Aggregate struct {
	// Data holds all retrieved documents: first-round results in partition
	// order, then rebalance and follow-up pages in completion order.
	Data []json.RawMessage

	// Meta is the merged metadata block; TotalDoc carries the true
	// server-side matching-document count.
	Meta client.Meta

	// Shortfall is how many requested documents the server could not
	// provide (0 when the request was fully satisfied). Nonzero means the
	// query matched fewer documents than the caller asked for.
	Shortfall int
}

// run carries the mutable state of one pagination invocation.
type run struct {
	client     *client.Client
	logger     zerolog.Logger
	suburl     string
	chunkSize  int
	workers    int
	timeout    time.Duration
	partitions []Partition
	limits     []int
	remaining  map[int]int
	agg        *Aggregate
	lastMeta   *client.Meta
}

// fetch adapts the dispatcher to the parallel executor.
func (r *run) fetch(ctx context.Context, crit query.Criteria) (parallel.Outcome[*client.Page], error) {
	page, subtotal, err := r.client.FetchPage(ctx, r.suburl, crit, r.timeout)
	if err != nil {
		return parallel.Outcome[*client.Page]{}, err
	}
	return parallel.Outcome[*client.Page]{
		Value:    page,
		Subtotal: subtotal,
		Docs:     len(page.Data),
	}, nil
}

// Paginate retrieves all documents matching criteria from endpoint+suburl,
// splitting the query into parallel partitions and paging each partition in
// strictly increasing skip order.
//
// Any dispatcher failure aborts the whole run: callers see either a complete
// aggregate or an error, never a partial result returned as if complete.
func (p *Paginator) Paginate(ctx context.Context, suburl string, criteria query.Criteria, opts Options) (*Aggregate, error) {
	if opts.ChunkSize < 0 {
		return nil, &client.ConfigurationError{Reason: "chunk size must be greater than zero"}
	}
	if opts.NumChunks < 0 {
		return nil, &client.ConfigurationError{Reason: "number of chunks must be greater than zero or unset"}
	}

	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = p.config.DefaultChunkSize
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.config.Timeout
	}

	start := time.Now()

	crit := criteria.Clone()
	crit.SetInt(query.LimitKey, chunkSize)

	splitField := ChooseSplitField(crit, p.noSplit)
	partitions := planPartitions(crit, splitField, chunkSize, p.config)

	p.logger.Debug().
		Str("suburl", suburl).
		Str("split_field", splitField).
		Int("partitions", len(partitions)).
		Int("chunk_size", chunkSize).
		Msg("Planned query partitions")

	r := &run{
		client:     p.client,
		logger:     p.logger,
		suburl:     suburl,
		chunkSize:  chunkSize,
		workers:    p.config.MaxParallelRequests,
		timeout:    timeout,
		partitions: partitions,
		limits:     make([]int, len(partitions)),
		remaining:  make(map[int]int, len(partitions)),
		agg:        &Aggregate{},
	}
	for i := range partitions {
		r.limits[i] = partitions[i].Limit
	}

	// Initial round: every partition in parallel. Subtotals size the whole
	// operation.
	initialParams := make([]query.Criteria, len(partitions))
	for i := range partitions {
		initialParams[i] = partitions[i].Criteria.Clone()
	}

	results, err := parallel.Run(ctx, r.workers, initialParams, r.fetch, nil, p.logger)
	if err != nil {
		return nil, err
	}

	totalDoc := 0
	ordered := make([]*client.Page, len(partitions))
	for _, res := range results {
		r.remaining[res.Index] = res.Subtotal - r.limits[res.Index]
		totalDoc += res.Subtotal
		ordered[res.Index] = res.Value
	}
	for _, page := range ordered {
		r.agg.Data = append(r.agg.Data, page.Data...)
	}
	r.lastMeta = results[len(results)-1].Value.Meta

	// Rebalance if some partitions produced fewer documents than allotted
	if len(partitions) > 1 && len(r.agg.Data) < chunkSize {
		if err := r.rebalance(ctx); err != nil {
			return nil, err
		}
	}

	if r.lastMeta != nil {
		r.agg.Meta = *r.lastMeta
	}
	r.agg.Meta.TotalDoc = totalDoc

	maxPages := opts.NumChunks
	if maxPages == 0 {
		maxPages = (totalDoc + chunkSize - 1) / chunkSize
	}
	target := maxPages * chunkSize
	if target > totalDoc {
		target = totalDoc
	}

	// What the caller actually asked for, used to surface shortfall; an
	// uncapped query asks for everything that exists.
	requested := totalDoc
	if opts.NumChunks > 0 {
		requested = opts.NumChunks * chunkSize
	}

	sink := opts.Sink
	if sink == nil {
		sink = progress.Noop{}
	}

	initialLen := len(r.agg.Data)

	// All results already in hand, or the caller asked for a single page
	if initialLen >= target || opts.NumChunks == 1 {
		if len(r.agg.Data) > target {
			r.agg.Data = r.agg.Data[:target]
		}
		r.agg.Shortfall = shortfall(requested, len(r.agg.Data))
		sink.Advance(target)
		sink.Close()

		p.logger.Info().
			Str("suburl", suburl).
			Int("documents", len(r.agg.Data)).
			Int("total_doc", totalDoc).
			Dur("duration", time.Since(start)).
			Msg("Query complete (single round)")
		return r.agg, nil
	}

	sink.Advance(initialLen)

	// Fan out the remaining pages: per partition, advancing _skip until its
	// headroom or the global target is exhausted.
	needed := target - initialLen
	var paramsList []query.Criteria
	docCounter := 0

	for idx := range r.partitions {
		rem := r.remaining[idx]
		pcrit := r.partitions[idx].Criteria
		if _, ok := pcrit[query.SkipKey]; !ok {
			pcrit.SetInt(query.SkipKey, pcrit.IntOr(query.LimitKey, chunkSize))
		}

		for rem > 0 && docCounter < needed {
			n := rem
			if rem >= chunkSize {
				// Keep requests aligned to chunk boundaries
				n = chunkSize - docCounter%chunkSize
			}
			if n > needed-docCounter {
				n = needed - docCounter
			}

			pcrit.SetInt(query.LimitKey, n)
			docCounter += n
			paramsList = append(paramsList, pcrit.Clone())

			pcrit.SetInt(query.SkipKey, pcrit.IntOr(query.SkipKey, 0)+n)
			rem -= n
		}
	}

	pageResults, err := parallel.Run(ctx, r.workers, paramsList, r.fetch, sink, p.logger)
	if err != nil {
		return nil, err
	}

	for _, res := range pageResults {
		r.agg.Data = append(r.agg.Data, res.Value.Data...)
	}
	if len(pageResults) > 0 {
		if meta := pageResults[len(pageResults)-1].Value.Meta; meta != nil && meta.TimeStamp != "" {
			r.agg.Meta.TimeStamp = meta.TimeStamp
		}
	}

	if len(r.agg.Data) > target {
		r.agg.Data = r.agg.Data[:target]
	}
	r.agg.Shortfall = shortfall(requested, len(r.agg.Data))
	sink.Close()

	p.logger.Info().
		Str("suburl", suburl).
		Int("documents", len(r.agg.Data)).
		Int("total_doc", totalDoc).
		Int("requests", len(partitions)+len(paramsList)).
		Dur("duration", time.Since(start)).
		Msg("Query complete")

	return r.agg, nil
}

func shortfall(requested, collected int) int {
	if collected >= requested {
		return 0
	}
	return requested - collected
}
