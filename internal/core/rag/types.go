package rag

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document is a unit of ingestible knowledge. Embedding is filled in by the
// embedding provider at ingestion time.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Embedding []float32      `json:"-"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Hit is a document projection returned by similarity search.
// Score is cosine similarity; higher is more similar.
type Hit struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	Metadata string  `json:"metadata"`
	Score    float64 `json:"score"`
}

// MaxIDLength is the width of the primary key column.
const MaxIDLength = 100

// EncodeMetadata serialises metadata to its stored string form ("{}" when empty).
func EncodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("%w: metadata: %v", ErrInvalidDocument, err)
	}
	return string(b), nil
}

// ValidateIDs rejects blank and repeated ids across the whole set.
func ValidateIDs(docs []Document) error {
	seen := make(map[string]struct{}, len(docs))
	for i, d := range docs {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("document %d: %w: empty id", i, ErrInvalidDocument)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("document %q: %w: duplicate id", d.ID, ErrInvalidDocument)
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}
