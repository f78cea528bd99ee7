package conversation

import "github.com/gofiber/fiber/v3"

func RegisterRoutes(r fiber.Router, h *Handler) {
	r.Get("/conversations/:id", h.HandleGet)
}
