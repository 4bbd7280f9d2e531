package objectstore

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// decompress unwraps gzip-compressed object content, keyed off the object
// name suffix.
func decompress(key string, data []byte) ([]byte, error) {
	if !strings.HasSuffix(key, ".gz") {
		return data, nil
	}
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gunzip %s: %w", key, err)
	}
	defer reader.Close()

	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("gunzip %s: %w", key, err)
	}
	return out, nil
}

// decodeObject splits object content into individual documents. Content may
// be a single JSON document, a JSON array, or newline-delimited JSON.
func decodeObject(key string, data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var docs []json.RawMessage
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return docs, nil
	}

	// A single document may be pretty-printed across several lines, so try
	// the whole body before assuming jsonl.
	if json.Valid(trimmed) {
		return []json.RawMessage{json.RawMessage(bytes.Clone(trimmed))}, nil
	}

	// jsonl: one document per line
	lines := bytes.Split(trimmed, []byte("\n"))
	docs := make([]json.RawMessage, 0, len(lines))
	for i, line := range lines {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, fmt.Errorf("decode %s: invalid JSON on line %d", key, i+1)
		}
		docs = append(docs, json.RawMessage(bytes.Clone(line)))
	}
	return docs, nil
}

// filterDeprecated drops documents flagged deprecated.
func filterDeprecated(docs []json.RawMessage) []json.RawMessage {
	kept := docs[:0]
	for _, doc := range docs {
		var flags struct {
			Deprecated bool `json:"deprecated"`
		}
		if err := json.Unmarshal(doc, &flags); err == nil && flags.Deprecated {
			continue
		}
		kept = append(kept, doc)
	}
	return kept
}

// projectFields reduces each document to the requested fields. An empty
// field list leaves documents untouched.
func projectFields(docs []json.RawMessage, fields []string) ([]json.RawMessage, error) {
	if len(fields) == 0 {
		return docs, nil
	}

	projected := make([]json.RawMessage, 0, len(docs))
	for _, doc := range docs {
		var full map[string]json.RawMessage
		if err := json.Unmarshal(doc, &full); err != nil {
			return nil, fmt.Errorf("project fields: %w", err)
		}
		slim := make(map[string]json.RawMessage, len(fields))
		for _, f := range fields {
			if v, ok := full[f]; ok {
				slim[f] = v
			}
		}
		out, err := json.Marshal(slim)
		if err != nil {
			return nil, fmt.Errorf("project fields: %w", err)
		}
		projected = append(projected, out)
	}
	return projected, nil
}
