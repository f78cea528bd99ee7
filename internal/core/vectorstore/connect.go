package vectorstore

import (
	"context"
	"time"

	"rag-chatbot/config"
	"rag-chatbot/pkg/logger"

	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"
)

type dialFunc func(ctx context.Context, cfg milvusclient.Config) (Client, error)

func dialMilvus(ctx context.Context, cfg milvusclient.Config) (Client, error) {
	return milvusclient.NewClient(ctx, cfg)
}

// Connect dials Milvus with bounded retries (Milvus may take tens of seconds to boot)
// and returns a store bound to the configured collection.
func Connect(ctx context.Context, cfg config.MilvusConfig, dimension int) (*Milvus, error) {
	cli, err := connectWithRetry(ctx, dialMilvus, cfg)
	if err != nil {
		return nil, err
	}
	return New(cli, Options{
		Collection: cfg.Collection,
		Dimension:  dimension,
		NList:      cfg.Index.NList,
		NProbe:     cfg.Index.NProbe,
	}), nil
}

func connectWithRetry(ctx context.Context, dial dialFunc, cfg config.MilvusConfig) (Client, error) {
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	perAttempt := time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond
	delay := time.Duration(cfg.ConnectRetryDelayMs) * time.Millisecond

	clientCfg := milvusclient.Config{
		Address:       cfg.Address,
		Username:      cfg.Username,
		Password:      cfg.Password,
		EnableTLSAuth: cfg.TLS,
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, perAttempt)
		cli, err := dial(attemptCtx, clientCfg)
		cancel()
		if err == nil {
			logger.Info("%v: connected to %s", config.ModuleMilvus, cfg.Address)
			return cli, nil
		}
		lastErr = err
		logger.WithFields(map[string]interface{}{
			"address": cfg.Address,
			"attempt": i + 1,
			"of":      attempts,
			"error":   err,
		}).Warnf("%v: connect failed", config.ModuleMilvus)

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}
