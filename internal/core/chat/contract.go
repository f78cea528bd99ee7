package chat

import (
	"context"

	"rag-chatbot/internal/core/rag"
)

// Embedder turns text into a vector of the configured dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists documents and answers nearest-neighbour queries.
type VectorStore interface {
	Search(ctx context.Context, vector []float32, limit int) ([]rag.Hit, error)
	Insert(ctx context.Context, docs []rag.Document) error
}

// Completer generates an answer, optionally grounded with context.
type Completer interface {
	Complete(ctx context.Context, message, grounding string) (string, error)
}

// Recorder persists finished exchanges.
type Recorder interface {
	Record(ctx context.Context, ex Exchange) error
}
