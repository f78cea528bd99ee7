package app

import (
	"context"
	"errors"
	"fmt"

	"rag-chatbot/config"
	"rag-chatbot/internal/api/conversation"
	"rag-chatbot/internal/api/upload"
	"rag-chatbot/internal/core/chat"
	"rag-chatbot/internal/core/completion"
	"rag-chatbot/internal/core/embedding"
	"rag-chatbot/internal/core/health"
	"rag-chatbot/internal/core/vectorstore"
	"rag-chatbot/internal/database"
	"rag-chatbot/internal/metrics"
	"rag-chatbot/internal/services/ingest"
	"rag-chatbot/pkg/logger"
	s3client "rag-chatbot/pkg/s3"

	"gorm.io/gorm"
)

// VectorStore is what the application needs from the vector database.
type VectorStore interface {
	chat.VectorStore
	health.Prober
	EnsureCollection(ctx context.Context) error
	Close() error
}

// App holds the wired services shared by the HTTP server and the CLI.
type App struct {
	Config     config.Config
	Chat       *chat.Service
	Health     *health.Service
	Ingest     *ingest.Service
	Store      VectorStore
	Completion *completion.OpenAI

	// History and Archive are nil when the database or the upload bucket is not configured.
	History conversation.History
	Archive upload.Archive

	db    *gorm.DB
	cache *embedding.RedisStore
}

// New connects every configured dependency. Only an invalid configuration is
// fatal: an unreachable Milvus leaves the app running with health reporting
// it, and optional backends (MySQL, Redis, S3) are skipped with a log line.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	a := &App{Config: cfg}

	a.Store = a.connectStore(ctx)

	embedder := embedding.NewOpenAI(cfg.OpenAI)
	var chatEmbedder chat.Embedder = embedder
	if len(cfg.Redis.Addrs) > 0 {
		store, err := embedding.NewRedisStore(cfg.Redis)
		if err != nil {
			logger.Error(err, "%v: embedding cache disabled", config.ModuleRedis)
		} else {
			a.cache = store
			chatEmbedder = embedding.NewCached(embedder, store, embedder.Model(), embedder.Dimension(), metrics.EmbeddingCacheTotal)
			logger.Info("%v: embedding cache enabled", config.ModuleRedis)
		}
	}

	a.Completion = completion.NewOpenAI(cfg.OpenAI)
	if !a.Completion.Configured() {
		logger.Warn("%v: api key missing, completions will fail until it is set", config.ModuleOpenAI)
	}

	opts := []chat.Option{chat.WithEmbedConcurrency(cfg.Ingest.EmbedConcurrency)}
	if cfg.Database.DSN != "" {
		if recorder := a.openRecorder(); recorder != nil {
			opts = append(opts, chat.WithRecorder(recorder))
			a.History = recorder
		}
	}
	a.Chat = chat.NewService(chatEmbedder, a.Store, a.Completion, cfg.Retrieval, opts...)
	a.Health = health.NewService(a.Store, a.Completion)

	objects, err := s3client.GetClient(ctx, cfg.S3)
	if err != nil {
		logger.Error(err, "%v: s3 sources disabled", config.ModuleS3)
	}
	var loaderObjects ingest.ObjectStore
	if objects != nil {
		loaderObjects = objects
		if cfg.S3.Bucket != "" {
			if err := upload.EnsureBucket(ctx, objects, cfg.S3.Bucket); err != nil {
				logger.Error(err, "%v: upload archive disabled", config.ModuleS3)
			} else {
				a.Archive = objects
			}
		}
	}
	a.Ingest = ingest.NewService(ingest.NewLoader(loaderObjects, cfg.Ingest.Include), a.Chat, a.Store, cfg.Ingest)

	return a, nil
}

func (a *App) connectStore(ctx context.Context) VectorStore {
	store, err := vectorstore.Connect(ctx, a.Config.Milvus, a.Config.OpenAI.EmbeddingDimension)
	if err != nil {
		logger.Error(err, "%v: not connected, collection initialization skipped", config.ModuleMilvus)
		return offlineStore{err: err}
	}
	if err := store.EnsureCollection(ctx); err != nil {
		logger.Error(err, "%v: failed to initialize collection", config.ModuleMilvus)
	} else {
		logger.Info("%v: collection %s initialized", config.ModuleMilvus, store.Collection())
	}
	return store
}

func (a *App) openRecorder() *database.Recorder {
	db, err := database.Open(a.Config.Database)
	if err != nil {
		logger.Error(err, "%v: transcripts disabled", config.ModuleDatabase)
		return nil
	}
	if err := database.Migrate(db); err != nil {
		logger.Error(err, "%v: transcripts disabled", config.ModuleDatabase)
		return nil
	}
	a.db = db
	logger.Info("%v: transcripts enabled", config.ModuleDatabase)
	return database.NewRecorder(db)
}

// PingDatabase checks the transcript database; it fails when none is configured.
func (a *App) PingDatabase(ctx context.Context) error {
	if a.db == nil {
		return database.ErrNotConfigured
	}
	return database.Ping(ctx, a.db)
}

// Close releases every connection. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%v: close: %w", config.ModuleMilvus, err))
		}
		a.Store = nil
	}
	if a.cache != nil {
		a.cache.Close()
		a.cache = nil
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%v: close: %w", config.ModuleDatabase, err))
			}
		}
		a.db = nil
	}
	return errors.Join(errs...)
}
