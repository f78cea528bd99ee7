package ingest

import (
	"context"
	"errors"
	"time"

	"rag-chatbot/config"
	"rag-chatbot/internal/core/rag"
	"rag-chatbot/internal/services/ingest"
	"rag-chatbot/pkg/apperror"
	"rag-chatbot/pkg/apperror/status"
	"rag-chatbot/pkg/logger"

	"github.com/gofiber/fiber/v3"
)

// DocumentIngester writes ready-made documents.
type DocumentIngester interface {
	IngestDocuments(ctx context.Context, docs []rag.Document, progress ingest.Progress) (ingest.Report, error)
}

type Handler struct {
	ingester DocumentIngester
	timeout  time.Duration
}

// NewHandler builds the document ingestion handler. timeout bounds a single
// request, including asynchronous runs.
func NewHandler(ingester DocumentIngester, timeout time.Duration) *Handler {
	return &Handler{ingester: ingester, timeout: timeout}
}

// HandleIngest accepts {"documents":[...]} or a bare array. With ?async=true
// the batch is written in the background and 202 is returned immediately.
func (h *Handler) HandleIngest(c fiber.Ctx) error {
	docs, err := ingest.DecodeDocuments(c.Body())
	if err != nil {
		return apperror.BadRequest(config.ModuleIngest, c, status.DocumentsInvalidRequestBody, err.Error())
	}
	if len(docs) == 0 {
		return apperror.BadRequest(config.ModuleIngest, c, status.DocumentsInvalidRequestBody, "documents is empty")
	}

	q := c.Query("async")
	if q == "1" || q == "true" || q == "yes" {
		// Fire and forget
		go h.ingestDetached(docs)
		return apperror.Success(config.ModuleIngest, c, apperror.FiberSuccessMessage{
			Code:    status.Accepted,
			Message: "ingest started",
			Data:    ingest.Report{Documents: len(docs)},
		})
	}

	ctx := c.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	report, err := h.ingester.IngestDocuments(ctx, docs, nil)
	if errors.Is(err, rag.ErrInvalidDocument) {
		return apperror.BadRequest(config.ModuleIngest, c, status.DocumentsInvalidDocument, err.Error())
	}
	if err != nil {
		return apperror.InternalError(config.ModuleIngest, c, status.New(status.DocumentsIngestFailed, err))
	}

	return apperror.Success(config.ModuleIngest, c, apperror.FiberSuccessMessage{
		Code:    status.OK,
		Message: "documents ingested",
		Data:    report,
	})
}

func (h *Handler) ingestDetached(docs []rag.Document) {
	ctx := context.Background()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	report, err := h.ingester.IngestDocuments(ctx, docs, nil)
	if err != nil {
		logger.Error(err, "%v: background ingest of %d documents failed, nothing written", config.ModuleIngest, len(docs))
		return
	}
	logger.Info("%v: background ingest wrote %d documents", config.ModuleIngest, report.Written)
}
