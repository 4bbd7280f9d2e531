// Package objectstore retrieves whole collections from the public build
// bucket instead of paginating the query endpoint. It serves unfiltered
// "get everything" queries, for which bulk object listing is far cheaper
// than pagination.
package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/materialsproject/mp-api-go/pkg/logging"
	"github.com/materialsproject/mp-api-go/pkg/parallel"
	"github.com/materialsproject/mp-api-go/pkg/progress"
)

// Config holds object store connection settings.
type Config struct {
	// Endpoint is the S3-compatible host (e.g. "s3.amazonaws.com").
	Endpoint string

	// AccessKeyID / SecretAccessKey are optional; the build bucket is
	// publicly readable and anonymous access is the default.
	AccessKeyID     string
	SecretAccessKey string

	// UseSSL enables TLS.
	UseSSL bool

	// Bucket is the content bucket name (e.g. "materialsproject-build").
	Bucket string

	// MaxParallelFetches bounds concurrent object downloads. Default 8.
	MaxParallelFetches int
}

// DefaultConfig returns the configuration for the public build bucket.
func DefaultConfig() Config {
	return Config{
		Endpoint:           "s3.amazonaws.com",
		UseSSL:             true,
		Bucket:             "materialsproject-build",
		MaxParallelFetches: 8,
	}
}

// Store fetches bulk collection objects from an S3-compatible bucket.
type Store struct {
	mc      *minio.Client
	bucket  string
	workers int
	logger  zerolog.Logger
}

// New creates an object store client.
func New(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if cfg.MaxParallelFetches <= 0 {
		cfg.MaxParallelFetches = 8
	}

	creds := credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("object store client: %w", err)
	}

	return &Store{
		mc:      mc,
		bucket:  cfg.Bucket,
		workers: cfg.MaxParallelFetches,
		logger:  logging.NewLogger("objectstore"),
	}, nil
}

// Prefix returns the bucket prefix of a collection for a database version.
func Prefix(collection, dbVersion string) string {
	return "collections/" + dbVersion + "/" + collection + "/"
}

// ListKeys lists all object keys under prefix.
func (s *Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ch := s.mc.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var keys []string
	for obj := range ch {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", s.bucket, prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// FetchCollection lists and retrieves every object of a collection, decodes
// single-JSON and jsonl content, drops deprecated documents, and optionally
// projects to the requested fields. Objects are fetched in parallel; any
// fetch failure aborts the whole operation.
func (s *Store) FetchCollection(ctx context.Context, collection, dbVersion string, fields []string, sink progress.Sink) ([]json.RawMessage, error) {
	start := time.Now()
	prefix := Prefix(collection, dbVersion)

	keys, err := s.ListKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("collection", collection).
		Str("db_version", dbVersion).
		Int("objects", len(keys)).
		Msg("Starting bulk collection fetch")

	if sink == nil {
		sink = progress.Noop{}
	}

	fetch := func(ctx context.Context, key string) (parallel.Outcome[[]json.RawMessage], error) {
		docs, err := s.fetchObject(ctx, key, fields)
		if err != nil {
			return parallel.Outcome[[]json.RawMessage]{}, err
		}
		return parallel.Outcome[[]json.RawMessage]{
			Value:    docs,
			Subtotal: len(docs),
			Docs:     len(docs),
		}, nil
	}

	results, err := parallel.Run(ctx, s.workers, keys, fetch, sink, s.logger)
	if err != nil {
		return nil, err
	}
	sink.Close()

	// Concatenate in key listing order
	byKey := make([][]json.RawMessage, len(keys))
	total := 0
	for _, res := range results {
		byKey[res.Index] = res.Value
		total += len(res.Value)
	}
	all := make([]json.RawMessage, 0, total)
	for _, docs := range byKey {
		all = append(all, docs...)
	}

	s.logger.Info().
		Str("collection", collection).
		Int("documents", len(all)).
		Dur("duration", time.Since(start)).
		Msg("Bulk collection fetch complete")

	return all, nil
}

// fetchObject retrieves and decodes one object.
func (s *Store) fetchObject(ctx context.Context, key string, fields []string) ([]json.RawMessage, error) {
	obj, err := s.mc.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", s.bucket, key, err)
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", s.bucket, key, err)
	}

	data, err := decompress(key, raw)
	if err != nil {
		return nil, err
	}

	docs, err := decodeObject(key, data)
	if err != nil {
		return nil, err
	}

	docs = filterDeprecated(docs)
	return projectFields(docs, fields)
}
