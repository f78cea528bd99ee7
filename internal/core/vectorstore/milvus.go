package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"rag-chatbot/config"
	"rag-chatbot/internal/core/rag"
	"rag-chatbot/internal/metrics"
	"rag-chatbot/pkg/logger"

	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	fieldID        = "id"
	fieldContent   = "content"
	fieldEmbedding = "embedding"
	fieldMetadata  = "metadata"

	maxVarChar = 65535
	shardsNum  = 2
)

// Client is the subset of the Milvus SDK client the store uses.
type Client interface {
	HasCollection(ctx context.Context, collName string) (bool, error)
	CreateCollection(ctx context.Context, schema *milvusentity.Schema, shardsNum int32, opts ...milvusclient.CreateCollectionOption) error
	CreateIndex(ctx context.Context, collName string, fieldName string, idx milvusentity.Index, async bool, opts ...milvusclient.IndexOption) error
	LoadCollection(ctx context.Context, collName string, async bool, opts ...milvusclient.LoadCollectionOption) error
	Insert(ctx context.Context, collName string, partitionName string, columns ...milvusentity.Column) (milvusentity.Column, error)
	Flush(ctx context.Context, collName string, async bool, opts ...milvusclient.FlushOption) error
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string, vectors []milvusentity.Vector,
		vectorField string, metricType milvusentity.MetricType, topK int, sp milvusentity.SearchParam, opts ...milvusclient.SearchQueryOptionFunc) ([]milvusclient.SearchResult, error)
	Close() error
}

type Options struct {
	Collection string
	Dimension  int
	NList      int
	NProbe     int
}

// Milvus stores documents in a single collection:
// id VARCHAR(100) PK, content VARCHAR, embedding FLOAT_VECTOR(dim), metadata VARCHAR,
// indexed with IVF_FLAT over cosine similarity.
type Milvus struct {
	cli  Client
	opts Options
}

func New(cli Client, opts Options) *Milvus {
	if opts.NList <= 0 {
		opts.NList = 128
	}
	if opts.NProbe <= 0 {
		opts.NProbe = 10
	}
	return &Milvus{cli: cli, opts: opts}
}

func (m *Milvus) Collection() string { return m.opts.Collection }

func (m *Milvus) Dimension() int { return m.opts.Dimension }

// EnsureCollection creates the collection and its index when absent.
// An existing collection is left untouched, whatever its schema.
func (m *Milvus) EnsureCollection(ctx context.Context) error {
	exists, err := m.cli.HasCollection(ctx, m.opts.Collection)
	if err != nil {
		return &rag.StoreError{Op: "has_collection", Err: err}
	}
	if exists {
		logger.Debug("%v: collection %s already exists", config.ModuleMilvus, m.opts.Collection)
		return nil
	}

	schema := milvusentity.NewSchema().
		WithName(m.opts.Collection).
		WithDescription("Document embeddings for chatbot").
		WithField(milvusentity.NewField().WithName(fieldID).WithDataType(milvusentity.FieldTypeVarChar).WithIsPrimaryKey(true).WithMaxLength(rag.MaxIDLength)).
		WithField(milvusentity.NewField().WithName(fieldContent).WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(maxVarChar)).
		WithField(milvusentity.NewField().WithName(fieldEmbedding).WithDataType(milvusentity.FieldTypeFloatVector).WithDim(int64(m.opts.Dimension))).
		WithField(milvusentity.NewField().WithName(fieldMetadata).WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(maxVarChar))

	if err := m.cli.CreateCollection(ctx, schema, shardsNum); err != nil {
		return &rag.StoreError{Op: "create_collection", Err: err}
	}

	idx, err := milvusentity.NewIndexIvfFlat(milvusentity.COSINE, m.opts.NList)
	if err != nil {
		return &rag.StoreError{Op: "create_index", Err: err}
	}
	if err := m.cli.CreateIndex(ctx, m.opts.Collection, fieldEmbedding, idx, false); err != nil {
		return &rag.StoreError{Op: "create_index", Err: err}
	}

	logger.Info("%v: created collection %s (dim=%d, nlist=%d)", config.ModuleMilvus, m.opts.Collection, m.opts.Dimension, m.opts.NList)
	return nil
}

// Insert appends docs with precomputed embeddings and flushes. The collection must exist.
func (m *Milvus) Insert(ctx context.Context, docs []rag.Document) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, len(docs))
	contents := make([]string, len(docs))
	vectors := make([][]float32, len(docs))
	metas := make([]string, len(docs))
	for i, d := range docs {
		if len(d.Embedding) != m.opts.Dimension {
			return &rag.StoreError{Op: "insert", Err: fmt.Errorf("%w: document %q has %d, collection has %d",
				rag.ErrDimensionMismatch, d.ID, len(d.Embedding), m.opts.Dimension)}
		}
		if d.ID == "" || len(d.ID) > rag.MaxIDLength {
			return &rag.StoreError{Op: "insert", Err: fmt.Errorf("%w: id %q must be 1-%d bytes", rag.ErrInvalidDocument, d.ID, rag.MaxIDLength)}
		}
		if len(d.Content) > maxVarChar {
			return &rag.StoreError{Op: "insert", Err: fmt.Errorf("%w: content of %q exceeds %d bytes", rag.ErrInvalidDocument, d.ID, maxVarChar)}
		}
		meta, err := rag.EncodeMetadata(d.Metadata)
		if err != nil {
			return &rag.StoreError{Op: "insert", Err: err}
		}
		ids[i] = d.ID
		contents[i] = d.Content
		vectors[i] = d.Embedding
		metas[i] = meta
	}

	exists, err := m.cli.HasCollection(ctx, m.opts.Collection)
	if err != nil {
		return &rag.StoreError{Op: "insert", Err: err}
	}
	if !exists {
		return &rag.StoreError{Op: "insert", Err: fmt.Errorf("%w: %s", rag.ErrCollectionNotFound, m.opts.Collection)}
	}

	if _, err := m.cli.Insert(ctx, m.opts.Collection, "",
		milvusentity.NewColumnVarChar(fieldID, ids),
		milvusentity.NewColumnVarChar(fieldContent, contents),
		milvusentity.NewColumnFloatVector(fieldEmbedding, m.opts.Dimension, vectors),
		milvusentity.NewColumnVarChar(fieldMetadata, metas),
	); err != nil {
		return &rag.StoreError{Op: "insert", Err: err}
	}
	if err := m.cli.Flush(ctx, m.opts.Collection, false); err != nil {
		return &rag.StoreError{Op: "flush", Err: err}
	}

	metrics.DocumentsIngestedTotal.Add(float64(len(docs)))
	logger.Info("%v: inserted %d documents into %s", config.ModuleMilvus, len(docs), m.opts.Collection)
	return nil
}

// Search returns up to limit hits ordered by descending similarity.
// A missing collection yields no hits and no error.
func (m *Milvus) Search(ctx context.Context, vector []float32, limit int) ([]rag.Hit, error) {
	if limit <= 0 || len(vector) == 0 {
		return []rag.Hit{}, nil
	}

	exists, err := m.cli.HasCollection(ctx, m.opts.Collection)
	if err != nil {
		return nil, &rag.StoreError{Op: "search", Err: err}
	}
	if !exists {
		logger.Warn("%v: collection %s not found, returning no hits", config.ModuleMilvus, m.opts.Collection)
		return []rag.Hit{}, nil
	}
	if err := m.cli.LoadCollection(ctx, m.opts.Collection, false); err != nil {
		return nil, &rag.StoreError{Op: "load", Err: err}
	}

	sp, err := milvusentity.NewIndexIvfFlatSearchParam(m.opts.NProbe)
	if err != nil {
		return nil, &rag.StoreError{Op: "search", Err: err}
	}

	start := time.Now()
	results, err := m.cli.Search(
		ctx,
		m.opts.Collection,
		nil, // partitions
		"",  // expr
		[]string{fieldContent, fieldMetadata},
		[]milvusentity.Vector{milvusentity.FloatVector(vector)},
		fieldEmbedding,
		milvusentity.COSINE,
		limit,
		sp,
	)
	elapsed := time.Since(start)
	metrics.VectorSearchDuration.Observe(elapsed.Seconds())
	if err != nil {
		return nil, &rag.StoreError{Op: "search", Err: err}
	}
	logger.Debug("%v: search done in %dms", config.ModuleMilvus, elapsed.Milliseconds())

	if len(results) == 0 {
		return []rag.Hit{}, nil
	}
	hits := parseResult(results[0])
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func parseResult(res milvusclient.SearchResult) []rag.Hit {
	n := res.ResultCount
	if n > len(res.Scores) {
		n = len(res.Scores)
	}

	var ids []string
	if col, ok := res.IDs.(*milvusentity.ColumnVarChar); ok {
		ids = col.Data()
	}
	var contents, metas []string
	for _, field := range res.Fields {
		col, ok := field.(*milvusentity.ColumnVarChar)
		if !ok {
			continue
		}
		switch col.Name() {
		case fieldContent:
			contents = col.Data()
		case fieldMetadata:
			metas = col.Data()
		}
	}

	hits := make([]rag.Hit, 0, n)
	for i := 0; i < n; i++ {
		h := rag.Hit{Score: float64(res.Scores[i])}
		if i < len(ids) {
			h.ID = ids[i]
		}
		if i < len(contents) {
			h.Content = contents[i]
		}
		if i < len(metas) {
			h.Metadata = metas[i]
		}
		hits = append(hits, h)
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	return hits
}

// IsAvailable is a cheap connectivity probe. It never fails.
func (m *Milvus) IsAvailable(ctx context.Context) bool {
	if m == nil || m.cli == nil {
		return false
	}
	_, err := m.cli.HasCollection(ctx, m.opts.Collection)
	if err != nil {
		logger.Warn("%v: availability probe failed: %v", config.ModuleMilvus, err)
		return false
	}
	return true
}

func (m *Milvus) Close() error {
	if m == nil || m.cli == nil {
		return nil
	}
	return m.cli.Close()
}
