package conversation

import (
	"context"
	"strconv"

	"rag-chatbot/config"
	"rag-chatbot/internal/database"
	"rag-chatbot/pkg/apperror"
	"rag-chatbot/pkg/apperror/status"

	"github.com/gofiber/fiber/v3"
)

// History lists recorded exchanges, oldest first.
type History interface {
	Conversation(ctx context.Context, conversationID string, limit int) ([]database.Exchange, error)
}

type conversationResponse struct {
	ConversationID string              `json:"conversation_id"`
	Exchanges      []database.Exchange `json:"exchanges"`
}

type Handler struct {
	history History
}

// NewHandler builds the transcript handler; history is nil when no database is configured.
func NewHandler(history History) *Handler {
	return &Handler{history: history}
}

func (h *Handler) HandleGet(c fiber.Ctx) error {
	if h.history == nil {
		return apperror.ServiceUnavailable(config.ModuleDatabase, c, status.ConversationsDisabled, "transcripts are not enabled")
	}
	id := c.Params("id")
	limit, _ := strconv.Atoi(c.Query("limit"))

	rows, err := h.history.Conversation(c.Context(), id, limit)
	if err != nil {
		return apperror.InternalError(config.ModuleDatabase, c, status.New(status.ConversationsLookupFailed, err))
	}
	if len(rows) == 0 {
		return apperror.NotFound(config.ModuleDatabase, c, status.ConversationNotFound, "conversation not found")
	}

	return apperror.Success(config.ModuleDatabase, c, apperror.FiberSuccessMessage{
		Code:    status.OK,
		Message: "conversation ok",
		Data:    conversationResponse{ConversationID: id, Exchanges: rows},
	})
}
