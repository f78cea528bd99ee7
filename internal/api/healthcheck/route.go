package healthcheck

import (
	"github.com/gofiber/fiber/v3"
)

// RegisterRoutes mounts the probes on root and the aggregate report on api.
func RegisterRoutes(root fiber.Router, api fiber.Router, h *Handler) {
	root.Get("/health", ApiHealthCheck)

	grp := root.Group("/health")
	grp.Get("/api", ApiHealthCheck)
	grp.Get("/database", h.DatabaseHealthCheck)
	grp.Get("/milvus", h.MilvusHealthCheck)

	api.Get("/health", h.HealthReport)
}
