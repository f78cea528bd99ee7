package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"rag-chatbot/internal/core/rag"
)

// DecodeDocuments parses a JSON document file, either a bare array of
// {id, content, metadata} objects or an object with a "documents" array.
func DecodeDocuments(data []byte) ([]rag.Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document file", rag.ErrInvalidDocument)
	}
	if trimmed[0] == '[' {
		var docs []rag.Document
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("%w: %v", rag.ErrInvalidDocument, err)
		}
		return docs, nil
	}
	var wrapped struct {
		Documents []rag.Document `json:"documents"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrInvalidDocument, err)
	}
	return wrapped.Documents, nil
}

// chunkDocuments turns extracted pages into one document per chunk.
// Ids are <name>-<source tag>-<chunk>: re-ingesting a source yields the same
// ids and same-named files from different sources never collide.
func chunkDocuments(f File, pages []string, chunkTokens, overlapTokens int) []rag.Document {
	chunks := BuildChunks(pages, chunkTokens, overlapTokens)
	base := documentBase(f.Name) + "-" + sourceTag(f.URI)
	docs := make([]rag.Document, 0, len(chunks))
	for _, ch := range chunks {
		sum := sha256.Sum256([]byte(ch.Content))
		docs = append(docs, rag.Document{
			ID:      fmt.Sprintf("%s-%04d", base, ch.Index),
			Content: ch.Content,
			Metadata: map[string]any{
				"source":         f.URI,
				"page":           ch.Page,
				"chunk":          ch.Index,
				"content_sha256": hex.EncodeToString(sum[:]),
			},
		})
	}
	return docs
}

const maxBaseLength = 80

// sourceTag is a short digest of the source URI.
func sourceTag(uri string) string {
	sum := sha256.Sum256([]byte(uri))
	return hex.EncodeToString(sum[:4])
}

func documentBase(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	base := b.String()
	if len(base) <= maxBaseLength {
		return base
	}
	sum := sha256.Sum256([]byte(name))
	return base[:maxBaseLength-9] + "~" + hex.EncodeToString(sum[:4])
}
