// Package query builds the wire-level parameter set the Materials API expects
// from a caller's logical filter criteria.
package query

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Control parameter names understood by the API.
const (
	FieldsKey     = "_fields"
	AllFieldsKey  = "_all_fields"
	LimitKey      = "_limit"
	SkipKey       = "_skip"
	SortFieldsKey = "_sort_fields"
)

// Criteria is a normalized set of query-string parameters.
type Criteria map[string]string

// Range is a closed interval filter. A nil bound is open on that side.
// It expands to <field>_min / <field>_max wire parameters.
type Range struct {
	Min any
	Max any
}

// Normalize converts logical filter values into wire parameters.
//
// Rules: nil values are dropped; list values are comma-joined after string
// encoding; Range values expand into _min/_max parameters; fields become a
// single comma-joined _fields parameter; with no fields and allFields true,
// _all_fields=true is set.
func Normalize(filters map[string]any, fields []string, allFields bool) Criteria {
	criteria := make(Criteria, len(filters)+2)

	for key, value := range filters {
		if value == nil {
			continue
		}

		if r, ok := value.(Range); ok {
			if r.Min != nil {
				criteria[key+"_min"] = encodeScalar(r.Min)
			}
			if r.Max != nil {
				criteria[key+"_max"] = encodeScalar(r.Max)
			}
			continue
		}

		criteria[key] = EncodeValue(value)
	}

	if len(fields) > 0 {
		criteria[FieldsKey] = strings.Join(fields, ",")
	} else if allFields {
		criteria[AllFieldsKey] = "true"
	}

	return criteria
}

// EncodeValue converts a single filter value to its wire representation.
// Lists are comma-joined, scalars string encoded.
func EncodeValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	case []int:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = strconv.Itoa(e)
		}
		return strings.Join(parts, ",")
	case []float64:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = encodeScalar(e)
		}
		return strings.Join(parts, ",")
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = encodeScalar(e)
		}
		return strings.Join(parts, ",")
	default:
		return encodeScalar(value)
	}
}

func encodeScalar(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns an independent copy of the criteria.
func (c Criteria) Clone() Criteria {
	clone := make(Criteria, len(c))
	for k, v := range c {
		clone[k] = v
	}
	return clone
}

// SetInt stores an integer-valued parameter such as _limit or _skip.
func (c Criteria) SetInt(key string, value int) {
	c[key] = strconv.Itoa(value)
}

// IntOr returns the integer value of a parameter, or def when the parameter
// is absent or not an integer.
func (c Criteria) IntOr(key string, def int) int {
	raw, ok := c[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// Values converts the criteria to url.Values for a request.
func (c Criteria) Values() url.Values {
	values := make(url.Values, len(c))
	for k, v := range c {
		values.Set(k, v)
	}
	return values
}

// Encode serializes the criteria as a sorted query string. Used both for
// requests and for deterministic cache keys.
func (c Criteria) Encode() string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(c[k]))
	}
	return b.String()
}

// HasUserFilters reports whether the criteria contains any caller-supplied
// filter field, ignoring internal bookkeeping parameters (leading underscore).
func (c Criteria) HasUserFilters() bool {
	for k := range c {
		if !strings.HasPrefix(k, "_") {
			return true
		}
	}
	return false
}
