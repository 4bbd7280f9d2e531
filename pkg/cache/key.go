package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Key identifies a cached query page by endpoint and its normalized,
// sorted parameter string.
type Key struct {
	// Endpoint is the route path (e.g. "/materials/summary").
	Endpoint string

	// Params is the sorted, encoded criteria string for the request.
	Params string
}

// String generates a deterministic Redis key. Parameter strings can exceed
// reasonable key lengths (comma-joined ID lists run to thousands of
// characters), so they are hashed.
//
// Format: mapi:cache:<endpoint>:<sha1(params)>
func (k Key) String() string {
	parts := []string{"mapi", "cache"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	sum := sha1.Sum([]byte(k.Params))
	parts = append(parts, hex.EncodeToString(sum[:]))

	return strings.Join(parts, ":")
}
