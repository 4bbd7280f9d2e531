package rester

import (
	"fmt"

	"github.com/materialsproject/mp-api-go/pkg/document"
	"github.com/materialsproject/mp-api-go/pkg/query"
)

// ParamKind classifies how a logical filter value maps onto the wire.
type ParamKind int

const (
	// ParamScalar passes a single value through unchanged.
	ParamScalar ParamKind = iota

	// ParamList comma-joins a list of values into one parameter.
	ParamList

	// ParamRange expands a query.Range into <wire>_min / <wire>_max.
	ParamRange
)

// ParamSpec declares one filter an endpoint accepts and its wire mapping.
type ParamSpec struct {
	// Name is the logical filter name callers use.
	Name string

	// Wire is the query-string parameter name. Empty means same as Name.
	Wire string

	// Kind selects the value translation.
	Kind ParamKind
}

func (p ParamSpec) wireName() string {
	if p.Wire != "" {
		return p.Wire
	}
	return p.Name
}

// Endpoint is a declarative descriptor of one API route.
type Endpoint struct {
	// Suffix is the route path under the endpoint root (e.g.
	// "materials/summary").
	Suffix string

	// Collection is the bulk object-store collection name.
	Collection string

	// PrimaryKey is the document identity field (e.g. "material_id").
	PrimaryKey string

	// Schema is the full field vocabulary of the endpoint's documents.
	Schema *document.Schema

	// Params are the filters the endpoint accepts.
	Params []ParamSpec
}

// translate maps logical filter values onto wire parameter names, rejecting
// filters the endpoint does not declare. Nil values are dropped.
func (e Endpoint) translate(filters map[string]any) (map[string]any, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	specs := make(map[string]ParamSpec, len(e.Params))
	for _, p := range e.Params {
		specs[p.Name] = p
	}

	wire := make(map[string]any, len(filters))
	for name, value := range filters {
		spec, ok := specs[name]
		if !ok {
			return nil, fmt.Errorf("endpoint %s does not support filter %q", e.Suffix, name)
		}
		if value == nil {
			continue
		}

		switch spec.Kind {
		case ParamRange:
			if _, ok := value.(query.Range); !ok {
				return nil, fmt.Errorf("filter %q expects a range value", name)
			}
			wire[spec.wireName()] = value
		default:
			wire[spec.wireName()] = value
		}
	}
	return wire, nil
}

// MaterialsSummary describes the materials/summary route.
func MaterialsSummary() Endpoint {
	return Endpoint{
		Suffix:     "materials/summary",
		Collection: "summary",
		PrimaryKey: "material_id",
		Schema: &document.Schema{
			Name: "SummaryDoc",
			Fields: []string{
				"material_id", "formula_pretty", "elements", "nelements",
				"nsites", "symmetry", "volume", "density", "band_gap",
				"is_stable", "is_metal", "energy_above_hull",
				"formation_energy_per_atom", "total_magnetization",
				"theoretical", "deprecated", "last_updated",
			},
		},
		Params: []ParamSpec{
			{Name: "material_ids", Wire: "material_ids", Kind: ParamList},
			{Name: "formula", Kind: ParamScalar},
			{Name: "chemsys", Kind: ParamList},
			{Name: "elements", Kind: ParamList},
			{Name: "exclude_elements", Kind: ParamList},
			{Name: "nelements", Kind: ParamRange},
			{Name: "nsites", Kind: ParamRange},
			{Name: "band_gap", Kind: ParamRange},
			{Name: "energy_above_hull", Kind: ParamRange},
			{Name: "formation_energy", Wire: "formation_energy_per_atom", Kind: ParamRange},
			{Name: "density", Kind: ParamRange},
			{Name: "volume", Kind: ParamRange},
			{Name: "is_stable", Kind: ParamScalar},
			{Name: "is_metal", Kind: ParamScalar},
			{Name: "theoretical", Kind: ParamScalar},
		},
	}
}

// MaterialsThermo describes the materials/thermo route.
func MaterialsThermo() Endpoint {
	return Endpoint{
		Suffix:     "materials/thermo",
		Collection: "thermo",
		PrimaryKey: "material_id",
		Schema: &document.Schema{
			Name: "ThermoDoc",
			Fields: []string{
				"material_id", "thermo_id", "thermo_type", "formula_pretty",
				"energy_per_atom", "formation_energy_per_atom",
				"energy_above_hull", "is_stable", "equilibrium_reaction_energy_per_atom",
				"decomposes_to", "last_updated",
			},
		},
		Params: []ParamSpec{
			{Name: "material_ids", Kind: ParamList},
			{Name: "thermo_ids", Kind: ParamList},
			{Name: "thermo_types", Kind: ParamList},
			{Name: "formula", Kind: ParamScalar},
			{Name: "chemsys", Kind: ParamList},
			{Name: "energy_above_hull", Kind: ParamRange},
			{Name: "formation_energy", Wire: "formation_energy_per_atom", Kind: ParamRange},
			{Name: "is_stable", Kind: ParamScalar},
		},
	}
}

// MaterialsTasks describes the materials/tasks route.
func MaterialsTasks() Endpoint {
	return Endpoint{
		Suffix:     "materials/tasks",
		Collection: "tasks",
		PrimaryKey: "task_id",
		Schema: &document.Schema{
			Name: "TaskDoc",
			Fields: []string{
				"task_id", "formula_pretty", "elements", "nelements",
				"task_type", "run_type", "calc_type", "completed_at",
				"last_updated",
			},
		},
		Params: []ParamSpec{
			{Name: "task_ids", Kind: ParamList},
			{Name: "formula", Kind: ParamScalar},
			{Name: "chemsys", Kind: ParamList},
			{Name: "elements", Kind: ParamList},
			{Name: "last_updated", Kind: ParamRange},
		},
	}
}
