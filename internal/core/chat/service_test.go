package chat

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"rag-chatbot/config"
	"rag-chatbot/internal/core/rag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRetrieval() config.RetrievalConfig {
	return config.RetrievalConfig{TopK: DefaultTopK, SimilarityThreshold: DefaultThreshold}
}

func newTestService(store *memStore, completer *recordingCompleter, opts ...Option) (*Service, *mapEmbedder) {
	emb := &mapEmbedder{vectors: map[string][]float32{}}
	return NewService(emb, store, completer, defaultRetrieval(), opts...), emb
}

func TestAnswer_FiltersByThreshold(t *testing.T) {
	store := &memStore{hits: []rag.Hit{
		{ID: "a", Content: "alpha", Score: 0.5},
		{ID: "b", Content: "beta", Score: 0.2},
		{ID: "c", Content: "gamma", Score: 0.35},
	}}
	completer := &recordingCompleter{answer: "grounded answer"}
	svc, _ := newTestService(store, completer)

	res := svc.Answer(t.Context(), "question")

	assert.Equal(t, "grounded answer", res.Answer)
	assert.Equal(t, []string{"a", "c"}, res.Sources)
	assert.Equal(t, "alpha\n\ngamma", completer.grounding)
	assert.Equal(t, "question", completer.message)

	meta := res.SearchMetadata
	assert.Equal(t, 2, meta.DocumentsFound)
	assert.Equal(t, 3, meta.TotalDocumentsSearched)
	assert.InDelta(t, 0.5, meta.HighestScore, 1e-9)
	assert.InDelta(t, 0.425, meta.AvgScore, 1e-9)
	assert.Equal(t, 0.3, meta.SimilarityThreshold)
	assert.True(t, meta.SearchSuccessful)
	assert.Empty(t, meta.Reason)
	assert.Equal(t, DefaultTopK, store.limit)
}

func TestAnswer_NoHitsStillCompletes(t *testing.T) {
	store := &memStore{hits: []rag.Hit{}}
	completer := &recordingCompleter{answer: "ungrounded answer"}
	svc, _ := newTestService(store, completer)

	res := svc.Answer(t.Context(), "question")

	assert.Equal(t, 1, completer.calls)
	assert.Equal(t, "", completer.grounding)
	assert.Equal(t, "ungrounded answer", res.Answer)
	assert.NotNil(t, res.Sources)
	assert.Empty(t, res.Sources)

	meta := res.SearchMetadata
	assert.False(t, meta.SearchSuccessful)
	assert.Equal(t, "No documents met similarity threshold (0.3)", meta.Reason)
	assert.Contains(t, meta.Reason, "0.3")
	assert.Zero(t, meta.HighestScore)
	assert.Zero(t, meta.AvgScore)
	assert.Zero(t, meta.DocumentsFound)
	assert.Zero(t, meta.TotalDocumentsSearched)
}

func TestAnswer_AllBelowThreshold(t *testing.T) {
	store := &memStore{hits: []rag.Hit{{ID: "a", Content: "alpha", Score: 0.29}, {ID: "b", Content: "beta", Score: -0.4}}}
	completer := &recordingCompleter{answer: "x"}
	svc, _ := newTestService(store, completer)

	res := svc.Answer(t.Context(), "question")

	assert.Empty(t, res.Sources)
	assert.Equal(t, "", completer.grounding)
	assert.Equal(t, 2, res.SearchMetadata.TotalDocumentsSearched)
	assert.Zero(t, res.SearchMetadata.HighestScore)
	assert.Zero(t, res.SearchMetadata.AvgScore)
	assert.False(t, res.SearchMetadata.SearchSuccessful)
}

func TestAnswer_ThresholdIsInclusive(t *testing.T) {
	store := &memStore{hits: []rag.Hit{{ID: "edge", Content: "edge", Score: 0.3}}}
	svc, _ := newTestService(store, &recordingCompleter{answer: "x"})

	res := svc.Answer(t.Context(), "question")
	assert.Equal(t, []string{"edge"}, res.Sources)
}

func TestAnswer_SkipsEmptyIDsAndContent(t *testing.T) {
	store := &memStore{hits: []rag.Hit{
		{ID: "", Content: "orphan", Score: 0.9},
		{ID: "b", Content: "", Score: 0.8},
		{ID: "c", Content: "gamma", Score: 0.7},
	}}
	completer := &recordingCompleter{answer: "x"}
	svc, _ := newTestService(store, completer)

	res := svc.Answer(t.Context(), "question")

	assert.Equal(t, []string{"b", "c"}, res.Sources)
	assert.Equal(t, "orphan\n\ngamma", completer.grounding)
	assert.Equal(t, 3, res.SearchMetadata.DocumentsFound)
}

func TestAnswer_EmbeddingFailure(t *testing.T) {
	store := &memStore{}
	completer := &recordingCompleter{answer: "unused"}
	svc, emb := newTestService(store, completer)
	emb.err = &rag.ProviderError{Provider: "openai", Op: "embed", Err: errQuota}

	res := svc.Answer(t.Context(), "question")

	assert.Equal(t, Apology, res.Answer)
	assert.Empty(t, res.Sources)
	assert.NotNil(t, res.Sources)
	assert.False(t, res.SearchMetadata.SearchSuccessful)
	assert.Contains(t, res.SearchMetadata.Reason, "Error: ")
	assert.Contains(t, res.SearchMetadata.Reason, errQuota.Error())
	assert.Equal(t, 0.3, res.SearchMetadata.SimilarityThreshold)
	assert.Zero(t, res.SearchMetadata.TotalDocumentsSearched)
	assert.Zero(t, completer.calls)
}

func TestAnswer_CompletionFailure(t *testing.T) {
	store := &memStore{hits: []rag.Hit{{ID: "a", Content: "alpha", Score: 0.9}}}
	completer := &recordingCompleter{err: &rag.ProviderError{Provider: "openai", Op: "complete", Err: errQuota}}
	svc, _ := newTestService(store, completer)

	res := svc.Answer(t.Context(), "question")

	assert.Equal(t, Apology, res.Answer)
	assert.Empty(t, res.Sources)
	assert.False(t, res.SearchMetadata.SearchSuccessful)
	assert.Contains(t, res.SearchMetadata.Reason, errQuota.Error())
	assert.Zero(t, res.SearchMetadata.DocumentsFound)
	assert.Zero(t, res.SearchMetadata.HighestScore)
}

func TestAnswer_StoreFailureIsSoft(t *testing.T) {
	store := &memStore{searchErr: &rag.StoreError{Op: "search", Err: assert.AnError}}
	completer := &recordingCompleter{answer: "ungrounded"}
	svc, _ := newTestService(store, completer)

	res := svc.Answer(t.Context(), "question")

	assert.Equal(t, "ungrounded", res.Answer)
	assert.Equal(t, 1, completer.calls)
	assert.Equal(t, "", completer.grounding)
	assert.Zero(t, res.SearchMetadata.TotalDocumentsSearched)
	assert.Contains(t, res.SearchMetadata.Reason, "threshold (0.3)")
}

func TestAnswer_ConfiguredThresholdAndTopK(t *testing.T) {
	store := &memStore{hits: []rag.Hit{{ID: "a", Content: "alpha", Score: 0.6}, {ID: "b", Content: "beta", Score: 0.45}}}
	completer := &recordingCompleter{answer: "x"}
	svc := NewService(&mapEmbedder{}, store, completer, config.RetrievalConfig{TopK: 7, SimilarityThreshold: 0.5})

	res := svc.Answer(t.Context(), "question")

	assert.Equal(t, 7, store.limit)
	assert.Equal(t, []string{"a"}, res.Sources)
	assert.Equal(t, 0.5, res.SearchMetadata.SimilarityThreshold)

	store.hits = []rag.Hit{}
	res = svc.Answer(t.Context(), "question")
	assert.Equal(t, "No documents met similarity threshold (0.5)", res.SearchMetadata.Reason)
}

func TestAnswer_FilterInvariantsOnRandomHits(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		n := rng.Intn(8)
		hits := make([]rag.Hit, n)
		for i := range hits {
			hits[i] = rag.Hit{ID: string(rune('a' + i)), Content: string(rune('A' + i)), Score: rng.Float64()*2 - 1}
		}
		store := &memStore{hits: hits}
		completer := &recordingCompleter{answer: "x"}
		svc, _ := newTestService(store, completer)

		res := svc.Answer(t.Context(), "q")

		var wantIDs []string
		var wantContext []string
		var best, sum float64
		for _, h := range hits {
			if h.Score >= DefaultThreshold {
				wantIDs = append(wantIDs, h.ID)
				wantContext = append(wantContext, h.Content)
				sum += h.Score
				if len(wantIDs) == 1 || h.Score > best {
					best = h.Score
				}
			}
		}
		require.Equal(t, len(wantIDs), len(res.Sources), "round %d", round)
		for i := range wantIDs {
			assert.Equal(t, wantIDs[i], res.Sources[i])
		}
		assert.Equal(t, n, res.SearchMetadata.TotalDocumentsSearched)
		assert.Equal(t, len(wantIDs) > 0, res.SearchMetadata.SearchSuccessful)
		if len(wantIDs) == 0 {
			assert.Zero(t, res.SearchMetadata.HighestScore)
			assert.Zero(t, res.SearchMetadata.AvgScore)
			assert.Equal(t, "", completer.grounding)
			continue
		}
		assert.Equal(t, strings.Join(wantContext, "\n\n"), completer.grounding)
		assert.InDelta(t, best, res.SearchMetadata.HighestScore, 1e-12)
		assert.InDelta(t, sum/float64(len(wantIDs)), res.SearchMetadata.AvgScore, 1e-12)
		assert.GreaterOrEqual(t, res.SearchMetadata.HighestScore, DefaultThreshold)
	}
}

func TestIngestThenAnswer_RoundTrip(t *testing.T) {
	store := &memStore{}
	completer := &recordingCompleter{answer: "Milvus is a vector database."}
	svc, emb := newTestService(store, completer)
	emb.vectors["Milvus is an open-source vector database."] = []float32{0, 1, 0}
	emb.vectors["FastAPI is a Python web framework."] = []float32{0, 0, 1}
	emb.vectors["What is Milvus?"] = []float32{0.1, 0.95, 0.05}

	n, err := svc.Ingest(t.Context(), []rag.Document{
		{ID: "milvus_intro", Content: "Milvus is an open-source vector database.", Metadata: map[string]any{"category": "database"}},
		{ID: "fastapi_intro", Content: "FastAPI is a Python web framework."},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	res := svc.Answer(t.Context(), "What is Milvus?")

	require.NotEmpty(t, res.Sources)
	assert.Equal(t, "milvus_intro", res.Sources[0])
	assert.NotContains(t, res.Sources, "fastapi_intro")
	assert.Equal(t, "Milvus is an open-source vector database.", completer.grounding)
}

func TestChat_EchoesConversationAndRecords(t *testing.T) {
	store := &memStore{hits: []rag.Hit{{ID: "a", Content: "alpha", Score: 0.8}}}
	rec := &fakeRecorder{}
	svc, _ := newTestService(store, &recordingCompleter{answer: "hi"}, WithRecorder(rec))
	conv := "conv-1"

	reply := svc.Chat(t.Context(), Request{Message: "hello", ConversationID: &conv})

	require.NotNil(t, reply.ConversationID)
	assert.Equal(t, "conv-1", *reply.ConversationID)
	assert.Equal(t, "hi", reply.Response)
	assert.Equal(t, []string{"a"}, reply.Sources)

	require.Len(t, rec.exchanges, 1)
	ex := rec.exchanges[0]
	assert.Equal(t, "conv-1", ex.ConversationID)
	assert.Equal(t, "hello", ex.Question)
	assert.Equal(t, "hi", ex.Answer)
	assert.True(t, ex.Metadata.SearchSuccessful)
}

func TestChat_RecorderFailureIsSwallowed(t *testing.T) {
	rec := &fakeRecorder{err: assert.AnError}
	svc, _ := newTestService(&memStore{hits: []rag.Hit{}}, &recordingCompleter{answer: "hi"}, WithRecorder(rec))

	reply := svc.Chat(t.Context(), Request{Message: "hello"})

	assert.Equal(t, "hi", reply.Response)
	assert.Nil(t, reply.ConversationID)
	assert.Len(t, rec.exchanges, 1)
}

func TestChat_RecordsAfterRequestDeadline(t *testing.T) {
	rec := &fakeRecorder{}
	svc, _ := newTestService(&memStore{hits: []rag.Hit{}}, &recordingCompleter{answer: "hi"}, WithRecorder(rec))
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	svc.Chat(ctx, Request{Message: "hello"})

	require.Len(t, rec.exchanges, 1)
	assert.NoError(t, rec.ctxErr)
	assert.True(t, rec.hasDeadline)
}

func TestRetrieve(t *testing.T) {
	store := &memStore{hits: []rag.Hit{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.1}}}
	completer := &recordingCompleter{}
	svc, _ := newTestService(store, completer)

	r, err := svc.Retrieve(t.Context(), "q", 5)
	require.NoError(t, err)

	assert.Len(t, r.Hits, 2)
	require.Len(t, r.Filtered, 1)
	assert.Equal(t, "a", r.Filtered[0].ID)
	assert.Equal(t, 5, store.limit)
	assert.Zero(t, completer.calls)
}

func TestRetrieve_FailsHard(t *testing.T) {
	svc, emb := newTestService(&memStore{}, &recordingCompleter{})
	emb.err = errQuota
	_, err := svc.Retrieve(t.Context(), "q", 0)
	assert.ErrorIs(t, err, errQuota)

	store := &memStore{searchErr: &rag.StoreError{Op: "search", Err: assert.AnError}}
	svc, _ = newTestService(store, &recordingCompleter{})
	_, err = svc.Retrieve(t.Context(), "q", 0)
	assert.True(t, rag.IsStoreError(err))
	assert.Equal(t, DefaultTopK, store.limit)
}
