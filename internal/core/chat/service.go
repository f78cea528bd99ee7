package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rag-chatbot/config"
	"rag-chatbot/internal/core/rag"
	"rag-chatbot/internal/metrics"
	"rag-chatbot/pkg/logger"
)

const (
	// Apology is returned whenever the answer path fails.
	Apology = "I apologize, but I encountered an error processing your request. Please try again."

	DefaultTopK      = 3
	DefaultThreshold = 0.3

	contextSeparator = "\n\n"

	recordTimeout = 5 * time.Second
)

// Service answers questions by retrieval-augmented generation and ingests
// documents into the vector store. It holds no per-request state.
type Service struct {
	embedder  Embedder
	store     VectorStore
	completer Completer
	recorder  Recorder

	topK             int
	threshold        float64
	embedConcurrency int
}

type Option func(*Service)

// WithRecorder persists every Chat exchange through r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithEmbedConcurrency bounds parallel embedding calls during Ingest.
func WithEmbedConcurrency(n int) Option {
	return func(s *Service) { s.embedConcurrency = n }
}

func NewService(embedder Embedder, store VectorStore, completer Completer, cfg config.RetrievalConfig, opts ...Option) *Service {
	s := &Service{
		embedder:         embedder,
		store:            store,
		completer:        completer,
		topK:             cfg.TopK,
		threshold:        cfg.SimilarityThreshold,
		embedConcurrency: 1,
	}
	if s.topK <= 0 {
		s.topK = DefaultTopK
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Threshold() float64 { return s.threshold }

func (s *Service) TopK() int { return s.topK }

// Answer never fails: provider errors become an apology with diagnostic metadata,
// and an unreachable store degrades to an ungrounded answer.
func (s *Service) Answer(ctx context.Context, query string) Result {
	emb := s.embedQuery(ctx, query)
	if !emb.ok() {
		return s.errorResult(emb.err)
	}

	found := s.searchHits(ctx, emb.value, s.topK)
	hits := found.value
	if !found.ok() {
		logger.Error(found.err, "%v: search failed, answering without context", config.ModuleChat)
		hits = nil
	}

	filtered := s.filter(hits)
	grounding := buildContext(filtered)

	answer := s.complete(ctx, query, grounding)
	if !answer.ok() {
		return s.errorResult(answer.err)
	}

	meta := s.metadata(len(hits), filtered)
	if meta.SearchSuccessful {
		metrics.AnswersTotal.WithLabelValues("grounded").Inc()
	} else {
		metrics.AnswersTotal.WithLabelValues("ungrounded").Inc()
		logger.Warn("%v: no relevant documents for query %q (threshold: %v)", config.ModuleChat, truncate(query, 50), s.threshold)
	}

	return Result{
		Answer:         answer.value,
		Sources:        sources(filtered),
		SearchMetadata: meta,
	}
}

// Chat answers req and records the exchange when a Recorder is configured.
// Recorder failures are logged only.
func (s *Service) Chat(ctx context.Context, req Request) Reply {
	start := time.Now()
	res := s.Answer(ctx, req.Message)

	if s.recorder != nil {
		ex := Exchange{
			Question: req.Message,
			Answer:   res.Answer,
			Sources:  res.Sources,
			Metadata: res.SearchMetadata,
			Duration: time.Since(start),
		}
		if req.ConversationID != nil {
			ex.ConversationID = *req.ConversationID
		}
		// the answer may have used up the request deadline
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		if err := s.recorder.Record(rctx, ex); err != nil {
			logger.Error(err, "%v: record exchange failed", config.ModuleChat)
		}
		cancel()
	}

	return Reply{
		Response:       res.Answer,
		ConversationID: req.ConversationID,
		Sources:        res.Sources,
		SearchMetadata: res.SearchMetadata,
	}
}

// Retrieve runs embedding, search and filtering without completion.
// Unlike Answer, failures are returned. topK <= 0 uses the configured value.
func (s *Service) Retrieve(ctx context.Context, query string, topK int) (Retrieval, error) {
	if topK <= 0 {
		topK = s.topK
	}
	emb := s.embedQuery(ctx, query)
	if !emb.ok() {
		return Retrieval{}, fmt.Errorf("%v: %w", config.ModuleRetriever, emb.err)
	}
	found := s.searchHits(ctx, emb.value, topK)
	if !found.ok() {
		return Retrieval{}, fmt.Errorf("%v: %w", config.ModuleRetriever, found.err)
	}
	hits := found.value
	if hits == nil {
		hits = []rag.Hit{}
	}
	return Retrieval{
		Hits:                hits,
		Filtered:            s.filter(hits),
		SimilarityThreshold: s.threshold,
	}, nil
}

func (s *Service) embedQuery(ctx context.Context, query string) outcome[[]float32] {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return failed[[]float32](err)
	}
	return succeeded(vec)
}

func (s *Service) searchHits(ctx context.Context, vec []float32, limit int) outcome[[]rag.Hit] {
	hits, err := s.store.Search(ctx, vec, limit)
	if err != nil {
		return failed[[]rag.Hit](err)
	}
	return succeeded(hits)
}

func (s *Service) complete(ctx context.Context, query, grounding string) outcome[string] {
	out, err := s.completer.Complete(ctx, query, grounding)
	if err != nil {
		return failed[string](err)
	}
	return succeeded(out)
}

// filter keeps hits scoring at least the threshold, in store order.
func (s *Service) filter(hits []rag.Hit) []rag.Hit {
	kept := make([]rag.Hit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= s.threshold {
			kept = append(kept, h)
			continue
		}
		logger.Debug("%v: filtering out document %s with low score: %.3f", config.ModuleChat, h.ID, h.Score)
	}
	logger.Info("%v: found %d documents, filtered to %d with score >= %v", config.ModuleChat, len(hits), len(kept), s.threshold)
	return kept
}

func (s *Service) metadata(total int, filtered []rag.Hit) SearchMetadata {
	meta := SearchMetadata{
		DocumentsFound:         len(filtered),
		TotalDocumentsSearched: total,
		SimilarityThreshold:    s.threshold,
		SearchSuccessful:       len(filtered) > 0,
	}
	if len(filtered) == 0 {
		meta.Reason = fmt.Sprintf("No documents met similarity threshold (%v)", s.threshold)
		return meta
	}

	var sum float64
	meta.HighestScore = filtered[0].Score
	for _, h := range filtered {
		sum += h.Score
		if h.Score > meta.HighestScore {
			meta.HighestScore = h.Score
		}
	}
	meta.AvgScore = sum / float64(len(filtered))
	return meta
}

func (s *Service) errorResult(err error) Result {
	metrics.AnswersTotal.WithLabelValues("error").Inc()
	logger.Error(err, "%v: failed to process message", config.ModuleChat)
	return Result{
		Answer:  Apology,
		Sources: []string{},
		SearchMetadata: SearchMetadata{
			SimilarityThreshold: s.threshold,
			SearchSuccessful:    false,
			Reason:              "Error: " + err.Error(),
		},
	}
}

func buildContext(hits []rag.Hit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Content != "" {
			parts = append(parts, h.Content)
		}
	}
	return strings.Join(parts, contextSeparator)
}

func sources(hits []rag.Hit) []string {
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.ID != "" {
			ids = append(ids, h.ID)
		}
	}
	return ids
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
