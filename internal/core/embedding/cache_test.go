package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	calls int
	vec   []float32
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

type memStore struct {
	data   map[string][]byte
	getErr error
	setErr error
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
}

func TestCached_MissThenHit(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	store := newMemStore()
	counter := newCounter()
	c := NewCached(inner, store, "text-embedding-3-small", 3, counter)

	first, err := c.Embed(t.Context(), "hello")
	require.NoError(t, err)
	second, err := c.Embed(t.Context(), "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("hit")))
}

func TestCached_KeyIncludesModel(t *testing.T) {
	a := NewCached(nil, nil, "model-a", 3, nil)
	b := NewCached(nil, nil, "model-b", 3, nil)
	assert.NotEqual(t, a.cacheKey("same text"), b.cacheKey("same text"))
}

func TestCached_KeyIncludesDimension(t *testing.T) {
	short := NewCached(nil, nil, "text-embedding-3-small", 512, nil)
	full := NewCached(nil, nil, "text-embedding-3-small", 1536, nil)
	assert.NotEqual(t, short.cacheKey("same text"), full.cacheKey("same text"))
}

func TestCached_WrongLengthEntryFallsThrough(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{1, 2}}
	store := newMemStore()
	c := NewCached(inner, store, "m", 2, nil)
	store.data[c.cacheKey("hello")] = vectorToBytes([]float32{1, 2, 3})

	vec, err := c.Embed(t.Context(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, vectorToBytes([]float32{1, 2}), store.data[c.cacheKey("hello")])
}

func TestCached_StoreFailuresAreIgnored(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{1}}
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	c := NewCached(inner, store, "m", 1, nil)

	vec, err := c.Embed(t.Context(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
}

func TestCached_InnerErrorNotCached(t *testing.T) {
	inner := &fakeEmbedder{err: errors.New("quota exceeded")}
	store := newMemStore()
	c := NewCached(inner, store, "m", 1, nil)

	_, err := c.Embed(t.Context(), "hello")
	require.Error(t, err)
	assert.Empty(t, store.data)
}

func TestCached_CorruptEntryFallsThrough(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{2}}
	store := newMemStore()
	c := NewCached(inner, store, "m", 1, nil)
	store.data[c.cacheKey("hello")] = []byte{1, 2, 3}

	vec, err := c.Embed(t.Context(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{2}, vec)
	assert.Equal(t, 1, inner.calls)
}

func TestVectorBytesRoundTrip(t *testing.T) {
	in := []float32{0, -1.5, 3.25}
	out, err := bytesToVector(vectorToBytes(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
