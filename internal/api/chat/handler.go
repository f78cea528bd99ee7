package chat

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"rag-chatbot/config"
	corechat "rag-chatbot/internal/core/chat"
	"rag-chatbot/pkg/apperror"
	"rag-chatbot/pkg/apperror/status"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Chatter answers a chat request. Answers never fail; errors are folded into the reply.
type Chatter interface {
	Chat(ctx context.Context, req corechat.Request) corechat.Reply
}

type Handler struct {
	chat     Chatter
	validate *validator.Validate
	timeout  time.Duration
}

// NewHandler builds the chat handler. timeout bounds a whole answer; zero means no limit.
func NewHandler(chat Chatter, timeout time.Duration) *Handler {
	return &Handler{chat: chat, validate: validator.New(), timeout: timeout}
}

func (h *Handler) HandleChat(c fiber.Ctx) error {
	var req corechat.Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apperror.BadRequest(config.ModuleChat, c, status.ChatInvalidRequestBody, "invalid request body: "+err.Error())
	}
	if err := h.validate.Struct(req); err != nil || strings.TrimSpace(req.Message) == "" {
		return apperror.BadRequest(config.ModuleChat, c, status.ChatMissingMessage, "message is required")
	}

	ctx := c.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	return c.JSON(h.chat.Chat(ctx, req))
}
