package objectstore

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"testing"
)

func gzipped(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(data)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestDecompress(t *testing.T) {
	payload := `{"material_id": "mp-149"}`

	t.Run("gz suffix decompresses", func(t *testing.T) {
		out, err := decompress("summary/block-0.jsonl.gz", gzipped(t, payload))
		if err != nil {
			t.Fatalf("decompress() error: %v", err)
		}
		if string(out) != payload {
			t.Errorf("decompress() = %q, want %q", out, payload)
		}
	})

	t.Run("plain key passes through", func(t *testing.T) {
		out, err := decompress("summary/block-0.jsonl", []byte(payload))
		if err != nil {
			t.Fatalf("decompress() error: %v", err)
		}
		if string(out) != payload {
			t.Errorf("decompress() = %q, want %q", out, payload)
		}
	})

	t.Run("corrupt gzip errors", func(t *testing.T) {
		if _, err := decompress("x.gz", []byte("not gzip")); err == nil {
			t.Error("expected error for corrupt gzip content")
		}
	})
}

func TestDecodeObject(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{
			name:    "json array",
			content: `[{"material_id": "mp-1"}, {"material_id": "mp-2"}]`,
			want:    2,
		},
		{
			name:    "jsonl lines",
			content: "{\"material_id\": \"mp-1\"}\n{\"material_id\": \"mp-2\"}\n{\"material_id\": \"mp-3\"}",
			want:    3,
		},
		{
			name:    "jsonl with blank lines",
			content: "{\"material_id\": \"mp-1\"}\n\n{\"material_id\": \"mp-2\"}\n",
			want:    2,
		},
		{
			name:    "single document",
			content: `{"material_id": "mp-1"}`,
			want:    1,
		},
		{
			name:    "pretty-printed single document",
			content: "{\n  \"material_id\": \"mp-1\",\n  \"band_gap\": 1.1\n}",
			want:    1,
		},
		{
			name:    "empty content",
			content: "   \n  ",
			want:    0,
		},
		{
			name:    "invalid line",
			content: "{\"ok\": true}\nnot json",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := decodeObject("summary/block-0.jsonl", []byte(tt.content))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeObject() error: %v", err)
			}
			if len(docs) != tt.want {
				t.Errorf("decoded %d documents, want %d", len(docs), tt.want)
			}
		})
	}
}

func TestFilterDeprecated(t *testing.T) {
	docs := []json.RawMessage{
		json.RawMessage(`{"material_id": "mp-1", "deprecated": false}`),
		json.RawMessage(`{"material_id": "mp-2", "deprecated": true}`),
		json.RawMessage(`{"material_id": "mp-3"}`),
	}

	kept := filterDeprecated(docs)
	if len(kept) != 2 {
		t.Fatalf("kept %d documents, want 2", len(kept))
	}
	for _, doc := range kept {
		var fields struct {
			MaterialID string `json:"material_id"`
		}
		if err := json.Unmarshal(doc, &fields); err != nil {
			t.Fatalf("decode kept document: %v", err)
		}
		if fields.MaterialID == "mp-2" {
			t.Error("deprecated document survived the filter")
		}
	}
}

func TestProjectFields(t *testing.T) {
	docs := []json.RawMessage{
		json.RawMessage(`{"material_id": "mp-1", "band_gap": 1.1, "volume": 40.9}`),
	}

	t.Run("keeps only requested fields", func(t *testing.T) {
		projected, err := projectFields(docs, []string{"material_id", "band_gap"})
		if err != nil {
			t.Fatalf("projectFields() error: %v", err)
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(projected[0], &fields); err != nil {
			t.Fatalf("decode projected document: %v", err)
		}
		if len(fields) != 2 {
			t.Errorf("projected document has %d fields, want 2: %v", len(fields), fields)
		}
		if _, ok := fields["volume"]; ok {
			t.Error("projection kept an unrequested field")
		}
	})

	t.Run("no fields means no projection", func(t *testing.T) {
		projected, err := projectFields(docs, nil)
		if err != nil {
			t.Fatalf("projectFields() error: %v", err)
		}
		if string(projected[0]) != string(docs[0]) {
			t.Errorf("empty projection altered the document: %s", projected[0])
		}
	})
}
