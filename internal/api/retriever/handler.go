package retriever

import (
	"context"
	"strconv"
	"strings"
	"time"

	"rag-chatbot/config"
	"rag-chatbot/internal/core/chat"
	"rag-chatbot/pkg/apperror"
	"rag-chatbot/pkg/apperror/status"

	"github.com/gofiber/fiber/v3"
)

const maxTopK = 64

// Retriever runs the retrieval half of the answer path.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) (chat.Retrieval, error)
}

type Handler struct {
	retriever Retriever
	timeout   time.Duration
}

func NewHandler(r Retriever, timeout time.Duration) *Handler {
	return &Handler{retriever: r, timeout: timeout}
}

// HandleSearch returns raw hits and the subset passing the similarity threshold.
// top_k defaults to the configured value.
func (h *Handler) HandleSearch(c fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return apperror.BadRequest(config.ModuleRetriever, c, status.RetrieverMissingQuery, "q is required")
	}
	topK := 0
	if raw := c.Query("top_k"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > maxTopK {
			return apperror.BadRequest(config.ModuleRetriever, c, status.RetrieverInvalidTopK, "top_k must be between 1 and 64")
		}
		topK = v
	}

	ctx := c.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.retriever.Retrieve(ctx, q, topK)
	if err != nil {
		return apperror.InternalError(config.ModuleRetriever, c, status.New(status.RetrieverSearchFailed, err))
	}

	return apperror.Success(config.ModuleRetriever, c, apperror.FiberSuccessMessage{
		Code:    status.OK,
		Message: "search ok",
		Data:    res,
	})
}
