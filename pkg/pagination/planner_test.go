package pagination

import (
	"strconv"
	"strings"
	"testing"

	"github.com/materialsproject/mp-api-go/pkg/query"
)

func TestChooseSplitField(t *testing.T) {
	noSplit := DefaultConfig().noSplitSet()

	tests := []struct {
		name     string
		criteria query.Criteria
		expected string
	}{
		{
			name: "most comma separated values wins",
			criteria: query.Criteria{
				"material_ids": "mp-1,mp-2,mp-3,mp-4",
				"task_ids":     "mp-10,mp-11",
				"formula":      "SiO2",
			},
			expected: "material_ids",
		},
		{
			name: "scalar fields pick first alphabetical",
			criteria: query.Criteria{
				"formula":   "SiO2",
				"is_stable": "true",
			},
			expected: "formula",
		},
		{
			name: "excluded fields are skipped",
			criteria: query.Criteria{
				"elements": "Si,O,Fe,Al,Mg",
				"formula":  "SiO2",
			},
			expected: "formula",
		},
		{
			name: "control parameters are skipped",
			criteria: query.Criteria{
				"_fields": "a,b,c,d,e",
				"_limit":  "100",
			},
			expected: "",
		},
		{
			name:     "empty criteria",
			criteria: query.Criteria{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChooseSplitField(tt.criteria, noSplit); got != tt.expected {
				t.Errorf("ChooseSplitField() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPlanPartitions_NoSplitField(t *testing.T) {
	cfg := DefaultConfig()
	criteria := query.Criteria{"formula": "SiO2"}

	partitions := planPartitions(criteria, "", 500, cfg)

	if len(partitions) != 1 {
		t.Fatalf("expected single partition, got %d", len(partitions))
	}
	if partitions[0].Limit != 500 {
		t.Errorf("partition limit = %d, want 500", partitions[0].Limit)
	}
	if got := partitions[0].Criteria.IntOr(query.LimitKey, 0); got != 500 {
		t.Errorf("partition _limit = %d, want 500", got)
	}
}

func TestPlanPartitions_SplitsAcrossParallelism(t *testing.T) {
	cfg := DefaultConfig()

	ids := make([]string, 80)
	for i := range ids {
		ids[i] = "mp-" + strconv.Itoa(i+1)
	}
	criteria := query.Criteria{
		"material_ids": strings.Join(ids, ","),
		"_limit":       "1000",
	}

	partitions := planPartitions(criteria, "material_ids", 1000, cfg)

	if len(partitions) != cfg.MaxParallelRequests {
		t.Fatalf("expected %d partitions, got %d", cfg.MaxParallelRequests, len(partitions))
	}

	// Every input value lands in exactly one partition
	seen := make(map[string]int)
	for _, p := range partitions {
		for _, v := range strings.Split(p.Criteria["material_ids"], ",") {
			seen[v]++
		}
	}
	if len(seen) != len(ids) {
		t.Errorf("partitions cover %d values, want %d", len(seen), len(ids))
	}
	for v, n := range seen {
		if n != 1 {
			t.Errorf("value %s appears in %d partitions", v, n)
		}
	}
}

func TestPlanPartitions_LimitsSumToChunkSize(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name      string
		values    int
		chunkSize int
	}{
		{name: "even division", values: 80, chunkSize: 1000},
		{name: "uneven division", values: 7, chunkSize: 100},
		{name: "chunk smaller than partitions", values: 80, chunkSize: 3},
		{name: "single value", values: 1, chunkSize: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := make([]string, tt.values)
			for i := range ids {
				ids[i] = "mp-" + strconv.Itoa(i+1)
			}
			criteria := query.Criteria{"material_ids": strings.Join(ids, ",")}

			partitions := planPartitions(criteria, "material_ids", tt.chunkSize, cfg)

			sum := 0
			for _, p := range partitions {
				if p.Limit <= 0 {
					t.Errorf("partition limit = %d, want > 0", p.Limit)
				}
				sum += p.Limit
			}
			if sum != tt.chunkSize {
				t.Errorf("limits sum to %d, want %d", sum, tt.chunkSize)
			}
		})
	}
}

func TestPlanPartitions_RespectsURLLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxURLLength = 60

	// A tight URL budget must force smaller value groups than the even
	// eight-way split would produce
	ids := make([]string, 64)
	for i := range ids {
		ids[i] = "mp-" + strconv.Itoa(100000+i)
	}
	criteria := query.Criteria{"material_ids": strings.Join(ids, ",")}

	partitions := planPartitions(criteria, "material_ids", 1000, cfg)

	if len(partitions) <= cfg.MaxParallelRequests {
		t.Fatalf("expected URL budget to force more than %d partitions, got %d",
			cfg.MaxParallelRequests, len(partitions))
	}

	evenSplit := len(ids) / cfg.MaxParallelRequests
	for i, p := range partitions {
		if got := strings.Count(p.Criteria["material_ids"], ",") + 1; got > evenSplit {
			t.Errorf("partition %d holds %d values, want at most %d under the URL budget",
				i, got, evenSplit)
		}
	}
}

func TestGroupValues(t *testing.T) {
	values := []string{"a", "b", "c", "d", "e"}

	groups := groupValues(values, 2)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if len(groups[2]) != 1 || groups[2][0] != "e" {
		t.Errorf("last group = %v, want [e]", groups[2])
	}

	// Degenerate size falls back to singleton groups
	if got := len(groupValues(values, 0)); got != len(values) {
		t.Errorf("groupValues(size=0) produced %d groups, want %d", got, len(values))
	}
}
