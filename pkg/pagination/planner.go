package pagination

import (
	"net/url"
	"sort"
	"strings"

	"github.com/materialsproject/mp-api-go/pkg/query"
)

// Partition is one independently issued sub-query: a criteria copy covering
// a slice of the split field's values, and its claimed share of the chunk.
type Partition struct {
	Criteria query.Criteria
	Limit    int
}

// ChooseSplitField picks the filter field to partition over: the
// string-valued field with the most comma-separated values, excluding
// control parameters (leading underscore) and fields in noSplit. Returns ""
// when no field is eligible.
func ChooseSplitField(criteria query.Criteria, noSplit map[string]struct{}) string {
	best := ""
	bestCount := 0

	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if strings.HasPrefix(k, "_") {
			continue
		}
		if _, excluded := noSplit[k]; excluded {
			continue
		}
		v := criteria[k]
		if v == "" {
			continue
		}
		count := strings.Count(v, ",") + 1
		if count > bestCount {
			best = k
			bestCount = count
		}
	}

	return best
}

// planPartitions splits one logical query into parallel sub-queries over
// splitField, dividing chunkSize into per-partition limits.
//
// The partition count starts at the configured parallelism, shrinks so each
// partition's encoded value list fits the URL-length headroom left by the
// other parameters, and is capped at chunkSize so the limits always sum to
// exactly chunkSize. With no split field the whole query is one partition.
func planPartitions(criteria query.Criteria, splitField string, chunkSize int, cfg Config) []Partition {
	if splitField == "" || criteria[splitField] == "" {
		crit := criteria.Clone()
		crit.SetInt(query.LimitKey, chunkSize)
		return []Partition{{Criteria: crit, Limit: chunkSize}}
	}

	// URL headroom for the split field: total budget minus the serialized
	// length of every other parameter.
	bareLen := 0
	for k, v := range criteria {
		if k == splitField {
			continue
		}
		bareLen += len(k) + len(url.QueryEscape(v)) + 2 // key=value&
	}
	maxParamStrLength := cfg.MaxURLLength - bareLen

	values := strings.Split(criteria[splitField], ",")
	paramCount := len(values)

	sliceSize := paramCount / cfg.MaxParallelRequests
	if sliceSize == 0 {
		sliceSize = 1
	}

	// If the default parallelism would overflow the headroom, shrink to the
	// smallest number of values any full headroom-sized window holds.
	if maxParamStrLength > 0 {
		escaped := url.QueryEscape(criteria[splitField])
		minWindow := -1
		for i := 0; i+maxParamStrLength <= len(escaped); i += maxParamStrLength {
			n := strings.Count(escaped[i:i+maxParamStrLength], "%2C") + 1
			if minWindow == -1 || n < minWindow {
				minWindow = n
			}
		}
		if minWindow > 0 && minWindow < sliceSize {
			sliceSize = minWindow
		}
	}

	groups := groupValues(values, sliceSize)

	// Never more partitions than documents requested: keeps the limit
	// distribution exact (per-partition limits sum to chunkSize).
	if len(groups) > chunkSize {
		sliceSize = (paramCount + chunkSize - 1) / chunkSize
		groups = groupValues(values, sliceSize)
	}

	n := len(groups)
	q := chunkSize / n
	r := chunkSize % n

	partitions := make([]Partition, n)
	for i, group := range groups {
		limit := q
		if r > 0 {
			limit = q + 1
			r--
		} else if q == 0 {
			limit = 1
		}

		crit := criteria.Clone()
		crit[splitField] = strings.Join(group, ",")
		crit.SetInt(query.LimitKey, limit)
		partitions[i] = Partition{Criteria: crit, Limit: limit}
	}

	return partitions
}

// groupValues divides values into contiguous groups of at most size each.
func groupValues(values []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	groups := make([][]string, 0, (len(values)+size-1)/size)
	for i := 0; i < len(values); i += size {
		end := i + size
		if end > len(values) {
			end = len(values)
		}
		groups = append(groups, values[i:end])
	}
	return groups
}
