package vectorstore

import (
	"context"
	"errors"
	"testing"

	"rag-chatbot/config"

	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMilvusConfig() config.MilvusConfig {
	cfg := config.Default().Milvus
	cfg.ConnectAttempts = 3
	cfg.ConnectRetryDelayMs = 1
	cfg.ConnectTimeoutMs = 100
	return cfg
}

func TestConnectWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	dial := func(_ context.Context, cfg milvusclient.Config) (Client, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection refused")
		}
		return newFakeClient(), nil
	}

	cli, err := connectWithRetry(t.Context(), dial, testMilvusConfig())
	require.NoError(t, err)
	assert.NotNil(t, cli)
	assert.Equal(t, 3, calls)
}

func TestConnectWithRetry_GivesUp(t *testing.T) {
	calls := 0
	dial := func(_ context.Context, _ milvusclient.Config) (Client, error) {
		calls++
		return nil, errors.New("connection refused")
	}

	_, err := connectWithRetry(t.Context(), dial, testMilvusConfig())
	require.EqualError(t, err, "connection refused")
	assert.Equal(t, 3, calls)
}

func TestConnectWithRetry_PassesCredentials(t *testing.T) {
	cfg := testMilvusConfig()
	cfg.Username = "db_admin"
	cfg.Password = "secret"
	cfg.TLS = true

	var got milvusclient.Config
	dial := func(_ context.Context, c milvusclient.Config) (Client, error) {
		got = c
		return newFakeClient(), nil
	}

	_, err := connectWithRetry(t.Context(), dial, cfg)
	require.NoError(t, err)
	assert.Equal(t, "db_admin", got.Username)
	assert.Equal(t, "secret", got.Password)
	assert.True(t, got.EnableTLSAuth)
	assert.Equal(t, cfg.Address, got.Address)
}

func TestConnectWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cfg := testMilvusConfig()
	cfg.ConnectRetryDelayMs = 60_000

	dial := func(_ context.Context, _ milvusclient.Config) (Client, error) {
		cancel()
		return nil, errors.New("connection refused")
	}

	_, err := connectWithRetry(ctx, dial, cfg)
	assert.ErrorIs(t, err, context.Canceled)
}
