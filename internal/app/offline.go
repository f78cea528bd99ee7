package app

import (
	"context"

	"rag-chatbot/internal/core/rag"
)

// offlineStore stands in for Milvus when it could not be reached at startup.
// Searches fail softly in the answer path; ingestion fails with the dial error.
type offlineStore struct {
	err error
}

func (s offlineStore) Search(context.Context, []float32, int) ([]rag.Hit, error) {
	return nil, &rag.StoreError{Op: "search", Err: s.err}
}

func (s offlineStore) Insert(context.Context, []rag.Document) error {
	return &rag.StoreError{Op: "insert", Err: s.err}
}

func (s offlineStore) EnsureCollection(context.Context) error {
	return &rag.StoreError{Op: "ensure collection", Err: s.err}
}

func (offlineStore) IsAvailable(context.Context) bool { return false }

func (offlineStore) Close() error { return nil }
