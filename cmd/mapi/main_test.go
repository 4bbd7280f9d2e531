package main

import (
	"reflect"
	"testing"
)

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected map[string]any
		wantErr  bool
	}{
		{
			name:     "no args",
			args:     nil,
			expected: nil,
		},
		{
			name: "scalar filter",
			args: []string{"formula=SiO2"},
			expected: map[string]any{
				"formula": "SiO2",
			},
		},
		{
			name: "comma value becomes list",
			args: []string{"elements=Si,O"},
			expected: map[string]any{
				"elements": []string{"Si", "O"},
			},
		},
		{
			name: "multiple filters",
			args: []string{"formula=SiO2", "is_stable=true"},
			expected: map[string]any{
				"formula":   "SiO2",
				"is_stable": "true",
			},
		},
		{
			name:    "missing equals sign",
			args:    []string{"formula"},
			wantErr: true,
		},
		{
			name:    "empty key",
			args:    []string{"=SiO2"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFilters(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFilters() error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("parseFilters() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLookupEndpoint(t *testing.T) {
	for _, name := range []string{"summary", "thermo", "tasks"} {
		endpoint, err := lookupEndpoint(name)
		if err != nil {
			t.Errorf("lookupEndpoint(%q) error: %v", name, err)
		}
		if endpoint.Suffix == "" || endpoint.PrimaryKey == "" {
			t.Errorf("lookupEndpoint(%q) returned incomplete descriptor: %+v", name, endpoint)
		}
	}

	if _, err := lookupEndpoint("bogus"); err == nil {
		t.Error("expected error for unknown endpoint name")
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(""); got != nil {
		t.Errorf("splitList(\"\") = %v, want nil", got)
	}
	if got := splitList("a,b"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("splitList(a,b) = %v, want [a b]", got)
	}
}
