package embedder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder returns [len(text), 1, 0, ...] vectors and fails on request
type mockEmbedder struct {
	mu          sync.Mutex
	dim         int
	failBatches bool
	failTexts   map[string]bool
	batchCalls  int
	singleCalls int
	singles     []string
	active      int
	maxActive   int
}

func (m *mockEmbedder) enter() {
	m.mu.Lock()
	m.active++
	if m.active > m.maxActive {
		m.maxActive = m.active
	}
	m.mu.Unlock()
}

func (m *mockEmbedder) leave() {
	m.mu.Lock()
	m.active--
	m.mu.Unlock()
}

func (m *mockEmbedder) vector(text string) []float32 {
	v := make([]float32, m.dim)
	v[0] = float32(len(text))
	v[1] = 1
	return v
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	m.enter()
	defer m.leave()
	m.mu.Lock()
	m.singleCalls++
	m.singles = append(m.singles, req.Text)
	fail := m.failTexts[req.Text]
	m.mu.Unlock()

	if fail {
		return nil, errors.New("model rejected input")
	}
	return &Embedding{Vector: m.vector(req.Text), Dimension: m.dim}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	m.enter()
	defer m.leave()
	m.mu.Lock()
	m.batchCalls++
	fail := m.failBatches
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fail {
		return nil, errors.New("batch rejected")
	}
	out := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		out[i] = &Embedding{Vector: m.vector(text), Dimension: m.dim}
	}
	return &BatchEmbeddingResponse{Embeddings: out}, nil
}

func (m *mockEmbedder) Dimension() int   { return m.dim }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-model" }
func (m *mockEmbedder) Close() error     { return nil }

func TestHandle_EmbedAll(t *testing.T) {
	mock := &mockEmbedder{dim: 4}
	h := NewHandle(mock, HandleOptions{BatchSize: 2})

	texts := []string{"a", "bb", "", "dddd", "eeeee"}
	vectors, stats, err := h.EmbedAll(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, vectors, len(texts))
	for i, v := range vectors {
		assert.Len(t, v, 4, "vector %d", i)
	}
	assert.Equal(t, []float32{0, 0, 0, 0}, vectors[2])
	assert.InDelta(t, 1.0, norm(vectors[3]), 1e-6)
	assert.Equal(t, 3, mock.batchCalls)
	assert.Equal(t, EmbedStats{Texts: 5, Batches: 3, ZeroVectors: 1}, stats)
}

func TestHandle_BatchFailureFallsBackPerItem(t *testing.T) {
	long := strings.Repeat("x", 50)
	mock := &mockEmbedder{
		dim:         3,
		failBatches: true,
		failTexts:   map[string]bool{"bad": true},
	}
	h := NewHandle(mock, HandleOptions{BatchSize: 10, MaxChars: 20})

	vectors, stats, err := h.EmbedAll(context.Background(), []string{"ok", "bad", long})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	assert.NotEqual(t, ZeroVector(3), vectors[0])
	assert.Equal(t, ZeroVector(3), vectors[1])
	assert.NotEqual(t, ZeroVector(3), vectors[2])

	// the long text was truncated before the retry
	assert.Contains(t, mock.singles, strings.Repeat("x", 20))

	assert.Equal(t, 1, stats.BatchFailures)
	assert.Equal(t, 3, stats.ItemRetries)
	assert.Equal(t, 1, stats.ZeroVectors)
}

func TestHandle_Cancelled(t *testing.T) {
	h := NewHandle(&mockEmbedder{dim: 2}, HandleOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := h.EmbedAll(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandle_EmbedQuery(t *testing.T) {
	h := NewHandle(&mockEmbedder{dim: 2}, HandleOptions{})

	v, err := h.EmbedQuery(context.Background(), "abc")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, norm(v), 1e-6)

	_, err = h.EmbedQuery(context.Background(), "")
	assert.Error(t, err)

	assert.Equal(t, 2, h.Dimension())
	assert.Equal(t, "mock", h.Provider())
	assert.Equal(t, "mock-model", h.Model())
}

func TestHandle_Serializes(t *testing.T) {
	mock := &mockEmbedder{dim: 2}
	h := NewHandle(mock, HandleOptions{BatchSize: 1})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = h.EmbedAll(context.Background(), []string{"a", "b", "c"})
			_, _ = h.EmbedQuery(context.Background(), "q")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, mock.maxActive)
}

func TestNewHandle_Defaults(t *testing.T) {
	h := NewHandle(&mockEmbedder{dim: 2}, HandleOptions{BatchSize: MaxBatchSize * 2})
	assert.Equal(t, MaxBatchSize, h.batchSize)
	assert.Equal(t, DefaultMaxChars, h.maxChars)
	assert.NotNil(t, h.logger)
}
