package pagination

import (
	"context"
	"sort"

	"github.com/materialsproject/mp-api-go/pkg/parallel"
	"github.com/materialsproject/mp-api-go/pkg/query"
)

// rebalance shifts unmet quota from over-assigned partitions to partitions
// with headroom, then issues one follow-up parallel round for every
// partition that received a top-up.
//
// Partitions are walked in ascending headroom order. A partition with
// negative headroom contributes its deficit to the fill pool and has its
// limit zeroed; a partition with positive headroom consumes from the pool up
// to its headroom, reissuing from _skip = its already-claimed limit. When no
// partition has positive headroom the shortfall is permanent: the server
// simply holds fewer matching documents than requested, and no further round
// is attempted.
func (r *run) rebalance(ctx context.Context) error {
	indices := make([]int, 0, len(r.partitions))
	for idx := range r.partitions {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(a, b int) bool {
		return r.remaining[indices[a]] < r.remaining[indices[b]]
	})

	fillDocs := 0
	var topUpParams []query.Criteria

	for _, idx := range indices {
		avail := r.remaining[idx]
		crit := r.partitions[idx].Criteria

		if avail <= 0 {
			fillDocs += -avail
			r.limits[idx] = 0
			continue
		}

		crit.SetInt(query.SkipKey, crit.IntOr(query.LimitKey, 0))

		if fillDocs == 0 {
			continue
		}

		topUp := fillDocs
		if topUp > avail {
			topUp = avail
		}
		fillDocs -= topUp

		crit.SetInt(query.LimitKey, topUp)
		r.limits[idx] += topUp
		r.remaining[idx] -= topUp

		topUpParams = append(topUpParams, crit.Clone())

		crit.SetInt(query.SkipKey, crit.IntOr(query.SkipKey, 0)+topUp)
		crit.SetInt(query.LimitKey, r.chunkSize)
	}

	if len(topUpParams) == 0 {
		return nil
	}

	r.logger.Debug().
		Int("requests", len(topUpParams)).
		Msg("Issuing rebalance round")

	results, err := parallel.Run(ctx, r.workers, topUpParams, r.fetch, nil, r.logger)
	if err != nil {
		return err
	}

	for _, res := range results {
		r.agg.Data = append(r.agg.Data, res.Value.Data...)
	}
	if last := results[len(results)-1].Value; last.Meta != nil {
		r.lastMeta = last.Meta
	}

	return nil
}
