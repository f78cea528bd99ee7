package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rag-chatbot/config"
	"rag-chatbot/internal/core/rag"
	"rag-chatbot/internal/metrics"
	"rag-chatbot/pkg/logger"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const providerName = "openai"

// OpenAI embeds text with the OpenAI embeddings endpoint.
// Retries are disabled; callers decide whether to try again.
type OpenAI struct {
	client    openai.Client
	model     string
	dimension int
}

func NewOpenAI(cfg config.OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.Key),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     cfg.EmbeddingModel,
		dimension: cfg.EmbeddingDimension,
	}
}

// Model returns the embedding model identifier.
func (o *OpenAI) Model() string { return o.model }

// Dimension returns the vector length every embedding must have.
func (o *OpenAI) Dimension() int { return o.dimension }

// Embed returns the embedding of text. Every failure is a *rag.ProviderError.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := o.embed(ctx, text)
	if err != nil {
		return nil, &rag.ProviderError{Provider: providerName, Op: "embed", Err: err}
	}
	return vec, nil
}

func (o *OpenAI) embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("input text is empty")
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(o.model),
	}
	// only the text-embedding-3 family accepts a shortened output
	if o.dimension > 0 && strings.HasPrefix(o.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(o.dimension))
	}

	start := time.Now()
	resp, err := o.client.Embeddings.New(ctx, params)
	metrics.ProviderRequestDuration.WithLabelValues(providerName, "embed").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(providerName, "embed", "error").Inc()
		logger.Error(err, "%v: embedding request failed", config.ModuleEmbedding)
		return nil, err
	}
	metrics.ProviderRequestsTotal.WithLabelValues(providerName, "embed", "ok").Inc()

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding returned")
	}
	src := resp.Data[0].Embedding
	if o.dimension > 0 && len(src) != o.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", rag.ErrDimensionMismatch, len(src), o.dimension)
	}

	vec := make([]float32, len(src))
	for i := range src {
		vec[i] = float32(src[i])
	}

	logger.WithFields(map[string]interface{}{
		"model":      o.model,
		"chars":      len(text),
		"dimension":  len(vec),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Debug("openai: embedding done")
	return vec, nil
}
