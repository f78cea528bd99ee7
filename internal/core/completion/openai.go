package completion

import (
	"context"
	"errors"
	"strings"
	"time"

	"rag-chatbot/config"
	"rag-chatbot/internal/core/rag"
	"rag-chatbot/internal/metrics"
	"rag-chatbot/pkg/logger"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	providerName = "openai"

	// EmptyResponse replaces a completion that carried no content.
	EmptyResponse = "No response generated"

	groundingPrefix = "You are a helpful assistant. Use the following context to answer the user's question: "
)

// OpenAI produces answers with the chat completions endpoint.
type OpenAI struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
	configured  bool
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
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		configured:  Configured(cfg.Key),
	}
}

// Configured reports whether key is present and not the shipped placeholder.
func Configured(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != config.PlaceholderOpenAIKey
}

// Configured reports whether the client holds a usable credential.
func (o *OpenAI) Configured() bool { return o.configured }

// Complete answers message. A non-empty grounding context is sent as a system
// message ahead of the user message. Failures are *rag.ProviderError.
func (o *OpenAI) Complete(ctx context.Context, message, grounding string) (string, error) {
	out, err := o.complete(ctx, message, grounding)
	if err != nil {
		return "", &rag.ProviderError{Provider: providerName, Op: "complete", Err: err}
	}
	return out, nil
}

func (o *OpenAI) complete(ctx context.Context, message, grounding string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if grounding != "" {
		messages = append(messages, openai.SystemMessage(groundingPrefix+grounding))
	}
	messages = append(messages, openai.UserMessage(message))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    messages,
		Temperature: openai.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.maxTokens))
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	metrics.ProviderRequestDuration.WithLabelValues(providerName, "complete").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(providerName, "complete", "error").Inc()
		logger.Error(err, "%v: chat completion failed", config.ModuleCompletion)
		return "", err
	}
	metrics.ProviderRequestsTotal.WithLabelValues(providerName, "complete", "ok").Inc()

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}

	logger.WithFields(map[string]interface{}{
		"model":         o.model,
		"grounded":      grounding != "",
		"finish_reason": resp.Choices[0].FinishReason,
		"total_tokens":  resp.Usage.TotalTokens,
		"elapsed_ms":    time.Since(start).Milliseconds(),
	}).Debug("openai: chat completion done")

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return EmptyResponse, nil
	}
	return content, nil
}
