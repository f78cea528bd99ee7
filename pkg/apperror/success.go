package apperror

import (
	"rag-chatbot/config"
	"rag-chatbot/pkg/apperror/status"
	"rag-chatbot/pkg/logger"

	"github.com/gofiber/fiber/v3"
)

type FiberSuccessMessage struct {
	Code       status.SuccessCode `json:"code"`
	Message    string             `json:"message"`
	TrackingID string             `json:"tracking_id"`
	Data       any                `json:"data"`
}

// Success writes a standardized JSON success response
func Success(module config.Module, c fiber.Ctx, response FiberSuccessMessage) error {
	if response.Code == 0 {
		response.Code = status.OK
	}
	if response.TrackingID == "" {
		response.TrackingID = c.Get(fiber.HeaderXRequestID)
	}
	logger.Debug("%v: %s %s -> %s", module, c.Method(), c.Path(), response.Message)
	return c.Status(int(response.Code)).JSON(response)
}
