// Command mapi queries the Materials Project API from the command line.
//
// Usage:
//
//	MP_API_KEY=... mapi [flags] count  <summary|thermo|tasks> [field=value ...]
//	MP_API_KEY=... mapi [flags] search <summary|thermo|tasks> [field=value ...]
//
// Comma-separated filter values are treated as lists. Example:
//
//	mapi -fields material_id,band_gap search summary elements=Si,O is_stable=true
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/materialsproject/mp-api-go/pkg/client"
	"github.com/materialsproject/mp-api-go/pkg/logging"
	"github.com/materialsproject/mp-api-go/pkg/pagination"
	"github.com/materialsproject/mp-api-go/pkg/progress"
	"github.com/materialsproject/mp-api-go/pkg/rester"
)

func main() {
	fields := flag.String("fields", "", "comma-separated fields to request (default: all)")
	sortFields := flag.String("sort", "", "comma-separated sort fields, prefix with - for descending")
	chunkSize := flag.Int("chunk-size", 0, "documents per page (0 = server default)")
	numChunks := flag.Int("num-chunks", 0, "maximum number of pages (0 = all)")
	timeout := flag.Duration("timeout", 0, "per-request timeout (0 = client default)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: mapi [flags] <count|search> <summary|thermo|tasks> [field=value ...]")
		os.Exit(2)
	}
	command, endpointName := args[0], args[1]

	level := logging.LevelWarn
	if *verbose {
		level = logging.LevelDebug
	}
	logging.Setup(logging.Config{Level: level, Pretty: true})

	apiKey := os.Getenv("MP_API_KEY")
	if apiKey == "" {
		log.Fatalf("MP_API_KEY is required")
	}

	cfg := client.DefaultConfig(apiKey)
	if endpoint := os.Getenv("MP_API_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			cancel()
			log.Fatalf("Failed to connect to Redis at %s: %v", redisURL, err)
		}
		cancel()
		cfg.Redis = redisClient
	}

	apiClient, err := client.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create API client: %v", err)
	}

	endpoint, err := lookupEndpoint(endpointName)
	if err != nil {
		log.Fatalf("%v", err)
	}
	r := rester.New(apiClient, pagination.DefaultConfig(), endpoint)

	filters, err := parseFilters(args[2:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()

	switch command {
	case "count":
		n, err := r.Count(ctx, filters)
		if err != nil {
			log.Fatalf("Count failed: %v", err)
		}
		fmt.Println(n)

	case "search":
		opts := rester.SearchOptions{
			Fields:     splitList(*fields),
			SortFields: splitList(*sortFields),
			ChunkSize:  *chunkSize,
			NumChunks:  *numChunks,
			Timeout:    *timeout,
			Sink: progress.Multi{
				progress.NewLogSink(logging.NewLogger("mapi"), 0, 1000),
				progress.NewMeterSink(endpoint.Collection),
			},
		}
		result, err := r.Search(ctx, filters, opts)
		if err != nil {
			log.Fatalf("Search failed: %v", err)
		}

		for _, record := range result.Records {
			fmt.Println(record)
		}
		fmt.Fprintf(os.Stderr, "%d documents (%d matching)\n", len(result.Records), result.Meta.TotalDoc)
		if result.Shortfall > 0 {
			fmt.Fprintf(os.Stderr, "%d requested documents were not available\n", result.Shortfall)
		}

	default:
		log.Fatalf("Unknown command %q (want count or search)", command)
	}
}

// lookupEndpoint resolves a short endpoint name to its descriptor.
func lookupEndpoint(name string) (rester.Endpoint, error) {
	switch name {
	case "summary":
		return rester.MaterialsSummary(), nil
	case "thermo":
		return rester.MaterialsThermo(), nil
	case "tasks":
		return rester.MaterialsTasks(), nil
	default:
		return rester.Endpoint{}, fmt.Errorf("unknown endpoint %q (want summary, thermo or tasks)", name)
	}
}

// parseFilters converts field=value arguments into filter values. Comma
// separated values become lists.
func parseFilters(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	filters := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q (want field=value)", arg)
		}
		if strings.Contains(value, ",") {
			filters[key] = strings.Split(value, ",")
		} else {
			filters[key] = value
		}
	}
	return filters, nil
}

// splitList splits a comma-separated flag value, returning nil when empty.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
