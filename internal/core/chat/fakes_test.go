package chat

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"rag-chatbot/internal/core/rag"
)

// mapEmbedder returns fixed vectors per text and a default vector otherwise.
type mapEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	fail    map[string]error
	err     error
	calls   []string
}

func (e *mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, text)
	if e.err != nil {
		return nil, e.err
	}
	if err, ok := e.fail[text]; ok {
		return nil, err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

// memStore is an in-memory cosine-similarity store.
type memStore struct {
	docs      []rag.Document
	hits      []rag.Hit
	searchErr error
	insertErr error
	limit     int
	inserts   int
}

func (s *memStore) Search(_ context.Context, vector []float32, limit int) ([]rag.Hit, error) {
	s.limit = limit
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if s.hits != nil {
		return s.hits, nil
	}
	hits := make([]rag.Hit, 0, len(s.docs))
	for _, d := range s.docs {
		meta, _ := rag.EncodeMetadata(d.Metadata)
		hits = append(hits, rag.Hit{ID: d.ID, Content: d.Content, Metadata: meta, Score: cosine(vector, d.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *memStore) Insert(_ context.Context, docs []rag.Document) error {
	s.inserts++
	if s.insertErr != nil {
		return &rag.StoreError{Op: "insert", Err: s.insertErr}
	}
	s.docs = append(s.docs, docs...)
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type recordingCompleter struct {
	calls     int
	message   string
	grounding string
	answer    string
	err       error
}

func (c *recordingCompleter) Complete(_ context.Context, message, grounding string) (string, error) {
	c.calls++
	c.message = message
	c.grounding = grounding
	if c.err != nil {
		return "", c.err
	}
	return c.answer, nil
}

type fakeRecorder struct {
	exchanges   []Exchange
	err         error
	ctxErr      error
	hasDeadline bool
}

func (r *fakeRecorder) Record(ctx context.Context, ex Exchange) error {
	r.exchanges = append(r.exchanges, ex)
	r.ctxErr = ctx.Err()
	_, r.hasDeadline = ctx.Deadline()
	return r.err
}

var errQuota = errors.New("You exceeded your current quota")
