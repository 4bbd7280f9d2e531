// Package pagination drives paginated, parallel retrieval of query results.
//
// A logical query is split into partitions over its largest comma-valued
// filter field, each partition claiming a share of the requested chunk size.
// After the first parallel round, partitions whose server-side result set was
// smaller than their share hand the shortfall to partitions with headroom in
// one rebalance round. Further pages are then fanned out in parallel until
// the caller's page budget or the total document count is exhausted.
package pagination
