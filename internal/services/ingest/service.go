package ingest

import (
	"context"
	"errors"
	"fmt"

	"rag-chatbot/config"
	"rag-chatbot/internal/core/rag"
	"rag-chatbot/pkg/logger"
)

// Ingester embeds and stores documents. Ingest does both as one
// all-or-nothing call; Prepare embeds without writing and Write stores
// prepared documents in a single call.
type Ingester interface {
	Ingest(ctx context.Context, docs []rag.Document) (int, error)
	Prepare(ctx context.Context, docs []rag.Document) ([]rag.Document, error)
	Write(ctx context.Context, prepared []rag.Document) error
}

// CollectionEnsurer creates the target collection when absent.
type CollectionEnsurer interface {
	EnsureCollection(ctx context.Context) error
}

// Progress is called after every embedded batch.
type Progress func(embedded, total int)

type Report struct {
	Files     int      `json:"files"`
	Documents int      `json:"documents"`
	Written   int      `json:"written"`
	Skipped   []string `json:"skipped,omitempty"`
}

// Service loads sources, chunks them into documents and ingests them.
// A run is all-or-nothing: ids are checked across the whole run, documents
// are embedded in batches of ingest.batch_size and written only once every
// batch has been embedded.
type Service struct {
	loader     *Loader
	ingester   Ingester
	collection CollectionEnsurer
	cfg        config.IngestConfig
}

func NewService(loader *Loader, ingester Ingester, collection CollectionEnsurer, cfg config.IngestConfig) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &Service{loader: loader, ingester: ingester, collection: collection, cfg: cfg}
}

// IngestURI loads every file behind uri and ingests it.
func (s *Service) IngestURI(ctx context.Context, uri string, progress Progress) (Report, error) {
	files, err := s.loader.Load(ctx, uri)
	if err != nil {
		return Report{}, err
	}
	logger.WithFields(map[string]interface{}{
		"uri":   uri,
		"files": len(files),
	}).Info("ingest: start")
	return s.IngestFiles(ctx, files, progress)
}

func (s *Service) IngestFiles(ctx context.Context, files []File, progress Progress) (Report, error) {
	report := Report{Files: len(files)}
	docs, skipped, err := s.Documents(files)
	report.Skipped = skipped
	if err != nil {
		return report, err
	}
	report.Documents = len(docs)
	if len(docs) == 0 {
		return report, nil
	}
	if err := rag.ValidateIDs(docs); err != nil {
		return report, fmt.Errorf("%v: %w", config.ModuleIngest, err)
	}
	if err := s.ensureCollection(ctx); err != nil {
		return report, err
	}

	prepared := make([]rag.Document, 0, len(docs))
	for start := 0; start < len(docs); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(docs))
		batch, err := s.ingester.Prepare(ctx, docs[start:end])
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"batch_start": start,
				"batch_end":   end,
				"error":       err,
			}).Errorf("ingest: embedding failed, nothing written")
			return report, err
		}
		prepared = append(prepared, batch...)
		if progress != nil {
			progress(end, len(docs))
		}
	}

	if err := s.ingester.Write(ctx, prepared); err != nil {
		return report, err
	}
	report.Written = len(prepared)
	logger.WithFields(map[string]interface{}{
		"files":     report.Files,
		"documents": report.Documents,
		"written":   report.Written,
	}).Info("ingest: done")
	return report, nil
}

// IngestDocuments writes ready-made documents in one all-or-nothing call.
func (s *Service) IngestDocuments(ctx context.Context, docs []rag.Document, progress Progress) (Report, error) {
	report := Report{Documents: len(docs)}
	if len(docs) == 0 {
		return report, nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return report, err
	}

	n, err := s.ingester.Ingest(ctx, docs)
	if err != nil {
		return report, err
	}
	report.Written = n
	if progress != nil {
		progress(len(docs), len(docs))
	}
	logger.WithFields(map[string]interface{}{
		"documents": report.Documents,
		"written":   report.Written,
	}).Info("ingest: done")
	return report, nil
}

func (s *Service) ensureCollection(ctx context.Context) error {
	if s.collection == nil {
		return nil
	}
	if err := s.collection.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("%v: ensure collection: %w", config.ModuleIngest, err)
	}
	return nil
}

// Documents converts files to documents. JSON files hold documents as-is;
// text, markdown and PDF files are chunked. Unsupported or empty files are skipped.
func (s *Service) Documents(files []File) ([]rag.Document, []string, error) {
	var (
		docs    []rag.Document
		skipped []string
	)
	for _, f := range files {
		if f.Ext() == ".json" {
			decoded, err := DecodeDocuments(f.Data)
			if err != nil {
				return nil, skipped, fmt.Errorf("%v: %s: %w", config.ModuleIngest, f.URI, err)
			}
			docs = append(docs, decoded...)
			continue
		}

		pages, err := ExtractPages(f)
		if errors.Is(err, ErrUnsupportedFormat) {
			skipped = append(skipped, f.URI)
			continue
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("%v: %s: %w", config.ModuleIngest, f.URI, err)
		}
		chunked := chunkDocuments(f, pages, s.cfg.ChunkTokens, s.cfg.ChunkOverlap)
		if len(chunked) == 0 {
			skipped = append(skipped, f.URI)
			continue
		}
		logger.WithFields(map[string]interface{}{
			"file":   f.URI,
			"pages":  len(pages),
			"chunks": len(chunked),
		}).Info("ingest: chunks built")
		docs = append(docs, chunked...)
	}
	return docs, skipped, nil
}
