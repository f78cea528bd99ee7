package app

import (
	"slices"
	"time"

	"rag-chatbot/config"
	"rag-chatbot/internal/api/chat"
	"rag-chatbot/internal/api/conversation"
	"rag-chatbot/internal/api/healthcheck"
	"rag-chatbot/internal/api/ingest"
	"rag-chatbot/internal/api/retriever"
	"rag-chatbot/internal/api/upload"
	"rag-chatbot/internal/metrics"
	"rag-chatbot/internal/middleware"
	"rag-chatbot/pkg/logger"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "1.0.0"

// NewServer builds the HTTP application on top of a.
func NewServer(a *App) *fiber.App {
	cfg := a.Config
	server := fiber.New(fiber.Config{
		AppName:     cfg.Server.AppName,
		BodyLimit:   cfg.Server.BodyLimit,
		Concurrency: cfg.Server.Concurrency,
	})

	server.Use(cors.New(corsConfig(cfg.Cors)))
	middleware.Register(server, cfg.Server)
	server.Use(metrics.Middleware())

	server.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": cfg.Server.AppName,
			"version": version,
		})
	})
	server.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := server.Group("/api/v1")

	healthcheck.RegisterRoutes(server, v1, healthcheck.NewHandler(a.Health, a.Store, a.pingFunc()))
	chat.RegisterRoutes(v1, chat.NewHandler(a.Chat, answerTimeout(cfg)))
	retriever.RegisterRoutes(v1, retriever.NewHandler(a.Chat, retrievalTimeout(cfg)))
	ingest.RegisterRoutes(v1, ingest.NewHandler(a.Ingest, ingestTimeout(cfg)))
	upload.RegisterRoutes(v1, upload.NewHandler(a.Ingest, a.Archive, cfg.S3.Bucket, ingestTimeout(cfg)))
	conversation.RegisterRoutes(v1, conversation.NewHandler(a.History))

	return server
}

func (a *App) pingFunc() healthcheck.PingFunc {
	if a.db == nil {
		return nil
	}
	return a.PingDatabase
}

// answerTimeout covers one embedding, one search and one completion.
func answerTimeout(cfg config.Config) time.Duration {
	return 2*time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second + searchTimeout(cfg)
}

func retrievalTimeout(cfg config.Config) time.Duration {
	return time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second + searchTimeout(cfg)
}

func searchTimeout(cfg config.Config) time.Duration {
	return time.Duration(cfg.Milvus.SearchTimeoutMs) * time.Millisecond
}

func ingestTimeout(cfg config.Config) time.Duration {
	return time.Duration(cfg.Ingest.TimeoutSeconds) * time.Second
}

func corsConfig(cfg config.CorsConfig) cors.Config {
	out := cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     cfg.AllowMethods,
		AllowHeaders:     cfg.AllowHeaders,
		AllowCredentials: cfg.AllowCredentials,
	}
	// credentials cannot be combined with a wildcard origin
	if out.AllowCredentials && slices.Contains(out.AllowOrigins, "*") {
		logger.Warn("%v: allow_credentials ignored with wildcard origin", config.ModuleCors)
		out.AllowCredentials = false
	}
	return out
}
