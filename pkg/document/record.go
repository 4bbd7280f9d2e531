// Package document materializes raw query documents into typed record views
// bound to the field projection the caller actually requested. Accessing a
// field the caller projected out fails loudly instead of returning a zero
// value.
package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Schema names a collection's full field vocabulary.
type Schema struct {
	// Name identifies the document kind (e.g. "SummaryDoc").
	Name string

	// Fields is the complete set of fields the collection can carry.
	Fields []string
}

// FieldNotRequestedError is raised when a caller accesses a field that was
// deliberately excluded by their own field projection. This is a
// usage-contract violation, not a server or network fault.
type FieldNotRequestedError struct {
	Field string
}

// Error implements the error interface.
func (e *FieldNotRequestedError) Error() string {
	return fmt.Sprintf("%q data is available but has not been requested in 'fields'. "+
		"A full list of unrequested fields can be found via FieldsNotRequested.", e.Field)
}

// UnknownFieldError is raised for fields outside the schema entirely.
type UnknownFieldError struct {
	Schema string
	Field  string
}

// Error implements the error interface.
func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s document has no field %q", e.Schema, e.Field)
}

// Record is a view over one raw document restricted to the fields actually
// fetched. Each Materialize call computes its view fresh, so records from
// calls with different projections never cross-contaminate.
type Record struct {
	schema       *Schema
	fields       map[string]json.RawMessage
	notRequested map[string]struct{}
}

// Materialize binds raw decoded documents to schema, restricted to
// requestedFields. An empty requestedFields exposes every populated field.
func Materialize(raw []json.RawMessage, schema *Schema, requestedFields []string) ([]*Record, error) {
	if schema == nil {
		schema = &Schema{Name: "Document"}
	}

	var requested map[string]struct{}
	if len(requestedFields) > 0 {
		requested = make(map[string]struct{}, len(requestedFields))
		for _, f := range requestedFields {
			requested[f] = struct{}{}
		}
	}

	records := make([]*Record, 0, len(raw))
	for i, doc := range raw {
		var populated map[string]json.RawMessage
		if err := json.Unmarshal(doc, &populated); err != nil {
			return nil, fmt.Errorf("decode document %d: %w", i, err)
		}

		fields := make(map[string]json.RawMessage, len(populated))
		for name, value := range populated {
			if requested != nil {
				if _, ok := requested[name]; !ok {
					continue
				}
			}
			fields[name] = value
		}

		notRequested := make(map[string]struct{})
		for _, name := range schema.Fields {
			if _, ok := fields[name]; !ok {
				notRequested[name] = struct{}{}
			}
		}

		records = append(records, &Record{
			schema:       schema,
			fields:       fields,
			notRequested: notRequested,
		})
	}

	return records, nil
}

// Get returns the raw value of a field. A field excluded by the caller's
// projection returns FieldNotRequestedError; a field outside the schema
// returns UnknownFieldError.
func (r *Record) Get(field string) (json.RawMessage, error) {
	if value, ok := r.fields[field]; ok {
		return value, nil
	}
	if _, ok := r.notRequested[field]; ok {
		return nil, &FieldNotRequestedError{Field: field}
	}
	return nil, &UnknownFieldError{Schema: r.schema.Name, Field: field}
}

// Decode unmarshals a field's value into target, with Get's error contract.
func (r *Record) Decode(field string, target any) error {
	value, err := r.Get(field)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(value, target); err != nil {
		return fmt.Errorf("decode field %q: %w", field, err)
	}
	return nil
}

// Has reports whether the field was fetched and is accessible.
func (r *Record) Has(field string) bool {
	_, ok := r.fields[field]
	return ok
}

// Fields returns the sorted accessible field names.
func (r *Record) Fields() []string {
	fields := make([]string, 0, len(r.fields))
	for name := range r.fields {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// FieldsNotRequested returns the sorted schema fields that exist but were
// not fetched.
func (r *Record) FieldsNotRequested() []string {
	fields := make([]string, 0, len(r.notRequested))
	for name := range r.notRequested {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// String renders the record's accessible fields for debugging.
func (r *Record) String() string {
	var b strings.Builder
	b.WriteString(r.schema.Name)
	b.WriteString("(")
	for i, name := range r.Fields() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteString("=")
		b.Write(r.fields[name])
	}
	b.WriteString(")")
	return b.String()
}
