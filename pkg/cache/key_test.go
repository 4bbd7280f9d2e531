package cache

import (
	"strings"
	"testing"
)

func TestKey_String(t *testing.T) {
	key := Key{Endpoint: "/materials/summary", Params: "_limit=10&formula=SiO2"}

	s := key.String()
	if !strings.HasPrefix(s, "mapi:cache:materials/summary:") {
		t.Errorf("key = %q, want mapi:cache:materials/summary: prefix", s)
	}

	// Params are hashed: the raw parameter string never appears in the key
	if strings.Contains(s, "formula") {
		t.Errorf("key %q leaks raw parameters", s)
	}
}

func TestKey_String_Deterministic(t *testing.T) {
	a := Key{Endpoint: "/materials/summary", Params: "_limit=10"}
	b := Key{Endpoint: "/materials/summary", Params: "_limit=10"}

	if a.String() != b.String() {
		t.Errorf("identical keys produce different strings: %q vs %q", a.String(), b.String())
	}
}

func TestKey_String_DistinguishesParams(t *testing.T) {
	a := Key{Endpoint: "/materials/summary", Params: "_limit=10"}
	b := Key{Endpoint: "/materials/summary", Params: "_limit=20"}

	if a.String() == b.String() {
		t.Error("different parameters produce the same cache key")
	}
}

func TestKey_String_EmptyEndpoint(t *testing.T) {
	key := Key{Params: "_limit=10"}

	s := key.String()
	if !strings.HasPrefix(s, "mapi:cache:") {
		t.Errorf("key = %q, want mapi:cache: prefix", s)
	}
	if strings.Contains(s, "::") {
		t.Errorf("key %q has an empty segment", s)
	}
}
