package chat

import (
	"context"
	"fmt"
	"strings"

	"rag-chatbot/config"
	"rag-chatbot/internal/core/rag"
	"rag-chatbot/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Ingest embeds docs and writes them to the store as one batch.
// Documents with empty content are skipped. Any embedding or store failure
// aborts the whole batch; nothing is written on error. It returns the number
// of documents written.
func (s *Service) Ingest(ctx context.Context, docs []rag.Document) (int, error) {
	batch, err := s.Prepare(ctx, docs)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		logger.Warn("%v: nothing to ingest", config.ModuleIngest)
		return 0, nil
	}
	if err := s.Write(ctx, batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

// Prepare validates docs and returns embedded copies of those with content.
// Nothing is written to the store.
func (s *Service) Prepare(ctx context.Context, docs []rag.Document) ([]rag.Document, error) {
	batch, err := prepare(docs)
	if err != nil {
		return nil, err
	}
	if err := s.embedAll(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// Write inserts documents returned by Prepare in a single store call.
func (s *Service) Write(ctx context.Context, prepared []rag.Document) error {
	if len(prepared) == 0 {
		return nil
	}
	if err := s.store.Insert(ctx, prepared); err != nil {
		return fmt.Errorf("%v: insert %d documents: %w", config.ModuleIngest, len(prepared), err)
	}
	logger.Info("%v: ingested %d documents", config.ModuleIngest, len(prepared))
	return nil
}

// prepare validates docs and returns copies of those worth embedding.
func prepare(docs []rag.Document) ([]rag.Document, error) {
	if err := rag.ValidateIDs(docs); err != nil {
		return nil, fmt.Errorf("%v: %w", config.ModuleIngest, err)
	}
	batch := make([]rag.Document, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			logger.Warn("%v: skipping document %s with empty content", config.ModuleIngest, d.ID)
			continue
		}
		if _, err := rag.EncodeMetadata(d.Metadata); err != nil {
			return nil, fmt.Errorf("%v: document %q: %w", config.ModuleIngest, d.ID, err)
		}
		d.Embedding = nil
		batch = append(batch, d)
	}
	return batch, nil
}

func (s *Service) embedAll(ctx context.Context, batch []rag.Document) error {
	if s.embedConcurrency <= 1 {
		for i := range batch {
			if err := s.embedOne(ctx, &batch[i]); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.embedConcurrency)
	for i := range batch {
		g.Go(func() error {
			return s.embedOne(gctx, &batch[i])
		})
	}
	return g.Wait()
}

func (s *Service) embedOne(ctx context.Context, d *rag.Document) error {
	vec, err := s.embedder.Embed(ctx, d.Content)
	if err != nil {
		return fmt.Errorf("%v: embed document %q: %w", config.ModuleIngest, d.ID, err)
	}
	d.Embedding = vec
	return nil
}
