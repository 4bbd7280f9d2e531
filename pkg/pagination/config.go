package pagination

import (
	"time"
)

// DefaultNoSplitFields are query parameters that must not be partitioned
// over: the server treats their comma-joined values as one filter expression
// rather than a value list, or they control sorting/projection.
func DefaultNoSplitFields() []string {
	return []string{
		"elements",
		"exclude_elements",
		"possible_species",
		"coordination_envs",
		"coordination_envs_anonymous",
		"has_props",
		"gb_plane",
		"rotation_axis",
		"keywords",
		"substrate_orientation",
		"film_orientation",
		"synthesis_type",
		"operations",
		"condition_mixing_device",
		"condition_mixing_media",
		"condition_heating_atmosphere",
		"_sort_fields",
		"_fields",
	}
}

// Config holds pagination engine settings.
type Config struct {
	// MaxParallelRequests bounds the worker pool. Default 8.
	MaxParallelRequests int

	// MaxURLLength bounds the serialized request URL; partitions shrink to
	// respect it. Default 2000.
	MaxURLLength int

	// DefaultChunkSize is the per-page document count when the caller gives
	// none. Default 1000.
	DefaultChunkSize int

	// NoSplitFields are field names excluded from partition splitting.
	NoSplitFields []string

	// Timeout is the per-request timeout handed to the dispatcher.
	Timeout time.Duration
}

// DefaultConfig returns the default pagination configuration.
func DefaultConfig() Config {
	return Config{
		MaxParallelRequests: 8,
		MaxURLLength:        2000,
		DefaultChunkSize:    1000,
		NoSplitFields:       DefaultNoSplitFields(),
		Timeout:             20 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxParallelRequests <= 0 {
		c.MaxParallelRequests = 8
	}
	if c.MaxURLLength <= 0 {
		c.MaxURLLength = 2000
	}
	if c.DefaultChunkSize <= 0 {
		c.DefaultChunkSize = 1000
	}
	if c.NoSplitFields == nil {
		c.NoSplitFields = DefaultNoSplitFields()
	}
	return c
}

func (c Config) noSplitSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.NoSplitFields))
	for _, f := range c.NoSplitFields {
		set[f] = struct{}{}
	}
	return set
}
