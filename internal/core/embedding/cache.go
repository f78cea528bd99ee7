package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"rag-chatbot/config"
	"rag-chatbot/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

const cacheKeyPrefix = "rag:emb_cache:"

// ErrCacheMiss is returned by a Store when the key is absent.
var ErrCacheMiss = errors.New("embedding cache miss")

// Embedder is the contract Cached decorates.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is a byte-oriented key-value backend for cached vectors.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Cached serves embeddings from a Store and falls back to the inner embedder.
// Cache failures are logged and otherwise ignored.
type Cached struct {
	inner      Embedder
	store      Store
	model      string
	dimension  int
	cacheTotal *prometheus.CounterVec
}

// NewCached wraps inner. model and dimension are part of the key so switching
// either never serves stale vectors. cacheTotal may be nil.
func NewCached(inner Embedder, store Store, model string, dimension int, cacheTotal *prometheus.CounterVec) *Cached {
	return &Cached{
		inner:      inner,
		store:      store,
		model:      model,
		dimension:  dimension,
		cacheTotal: cacheTotal,
	}
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return vec, nil
	}
	c.incCache("miss")

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.putToCache(ctx, key, vec)
	return vec, nil
}

func (c *Cached) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *Cached) cacheKey(text string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%s", c.model, c.dimension, text)))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *Cached) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			logger.WithFields(map[string]interface{}{"key": key, "error": err}).
				Warnf("%v: failed to get cached embedding", config.ModuleEmbedding)
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		logger.WithFields(map[string]interface{}{"key": key, "error": err}).
			Warnf("%v: failed to parse cached embedding", config.ModuleEmbedding)
		return nil, false
	}
	if c.dimension > 0 && len(vec) != c.dimension {
		logger.WithFields(map[string]interface{}{"key": key, "len": len(vec)}).
			Warnf("%v: ignoring cached embedding of wrong dimension", config.ModuleEmbedding)
		return nil, false
	}
	return vec, true
}

func (c *Cached) putToCache(ctx context.Context, key string, vec []float32) {
	if err := c.store.Set(ctx, key, vectorToBytes(vec)); err != nil {
		logger.WithFields(map[string]interface{}{"key": key, "error": err}).
			Warnf("%v: failed to cache embedding", config.ModuleEmbedding)
	}
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
