package healthcheck

import (
	"context"
	"time"

	"rag-chatbot/config"
	"rag-chatbot/internal/core/health"
	"rag-chatbot/pkg/apperror"
	"rag-chatbot/pkg/apperror/status"

	"github.com/gofiber/fiber/v3"
)

const probeTimeout = 2 * time.Second

// Checker produces the aggregate health report.
type Checker interface {
	Check(ctx context.Context) health.Report
}

// PingFunc checks a single dependency.
type PingFunc func(ctx context.Context) error

type Handler struct {
	checker Checker
	store   health.Prober
	db      PingFunc
}

// NewHandler builds the health handlers. store and db may be nil when the
// dependency is not configured.
func NewHandler(checker Checker, store health.Prober, db PingFunc) *Handler {
	return &Handler{checker: checker, store: store, db: db}
}

// ApiHealthCheck is the liveness probe.
func ApiHealthCheck(c fiber.Ctx) error {
	return c.SendString("ok")
}

// HealthReport returns the aggregate report, with 503 when unhealthy.
func (h *Handler) HealthReport(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), probeTimeout)
	defer cancel()

	report := h.checker.Check(ctx)
	code := fiber.StatusOK
	if !report.Healthy() {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(report)
}

func (h *Handler) DatabaseHealthCheck(c fiber.Ctx) error {
	if h.db == nil {
		return apperror.ServiceUnavailable(config.ModuleDatabase, c, status.HealthDatabaseDown, "database is not configured")
	}
	ctx, cancel := context.WithTimeout(c.Context(), probeTimeout)
	defer cancel()
	if err := h.db(ctx); err != nil {
		return apperror.ServiceUnavailable(config.ModuleDatabase, c, status.HealthDatabaseDown, err.Error())
	}
	return c.SendString("ok")
}

func (h *Handler) MilvusHealthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), probeTimeout)
	defer cancel()
	if h.store == nil || !h.store.IsAvailable(ctx) {
		return apperror.ServiceUnavailable(config.ModuleMilvus, c, status.HealthMilvusDown, "milvus is not reachable")
	}
	return c.SendString("ok")
}
