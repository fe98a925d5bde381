package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultMaxChars is the truncation applied when a single text is retried
const DefaultMaxChars = 8000

// EmbedStats summarizes one EmbedAll call
type EmbedStats struct {
	Texts         int
	Batches       int
	BatchFailures int
	ItemRetries   int
	ZeroVectors   int
}

// Handle serializes every call into one provider. It is the single shared
// entry point for index builds and query embedding.
type Handle struct {
	mu        sync.Mutex
	provider  Embedder
	batchSize int
	maxChars  int
	logger    *slog.Logger
}

// HandleOptions tune batching and truncation. Zero values take the defaults.
type HandleOptions struct {
	BatchSize int
	MaxChars  int
	Logger    *slog.Logger
}

// NewHandle wraps provider
func NewHandle(provider Embedder, opts HandleOptions) *Handle {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchSize > MaxBatchSize {
		opts.BatchSize = MaxBatchSize
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handle{
		provider:  provider,
		batchSize: opts.BatchSize,
		maxChars:  opts.MaxChars,
		logger:    opts.Logger,
	}
}

// Dimension returns the provider's dimension
func (h *Handle) Dimension() int { return h.provider.Dimension() }

// Provider returns the provider name
func (h *Handle) Provider() string { return h.provider.Provider() }

// Model returns the provider's model
func (h *Handle) Model() string { return h.provider.Model() }

// Close closes the provider
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.provider.Close()
}

// EmbedQuery embeds a single question and returns the normalized vector
func (h *Handle) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ValidateRequest(EmbeddingRequest{Text: text}); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	emb, err := h.provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: Truncate(text, h.maxChars)})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(emb.Vector) != h.provider.Dimension() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb.Vector), h.provider.Dimension())
	}
	return NormalizeVector(emb.Vector), nil
}

// EmbedAll embeds texts in batches and returns one normalized vector per
// text, in order. A failed batch is retried one text at a time with the
// text truncated; a text that still fails, or is empty, gets a zero vector.
// Only context cancellation aborts the call.
func (h *Handle) EmbedAll(ctx context.Context, texts []string) ([][]float32, EmbedStats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	dim := h.provider.Dimension()
	stats := EmbedStats{Texts: len(texts)}
	vectors := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += h.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		end := start + h.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		// empty texts cannot be sent; they keep a zero vector
		var batch []string
		var positions []int
		for i := start; i < end; i++ {
			if texts[i] == "" {
				vectors[i] = ZeroVector(dim)
				stats.ZeroVectors++
				continue
			}
			batch = append(batch, texts[i])
			positions = append(positions, i)
		}
		if len(batch) == 0 {
			continue
		}

		stats.Batches++
		resp, err := h.provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: batch})
		if err == nil && len(resp.Embeddings) == len(batch) && dimensionsMatch(resp.Embeddings, dim) {
			for j, emb := range resp.Embeddings {
				vectors[positions[j]] = NormalizeVector(emb.Vector)
			}
			continue
		}
		if isCancellation(ctx, err) {
			return nil, stats, ctx.Err()
		}

		stats.BatchFailures++
		h.logger.Warn("embedding batch failed, retrying per item",
			slog.Int("batch_start", start),
			slog.Int("batch_size", len(batch)),
			slog.Any("error", err))

		for j, text := range batch {
			stats.ItemRetries++
			vec, err := h.embedOne(ctx, text, dim)
			if err != nil {
				if isCancellation(ctx, err) {
					return nil, stats, ctx.Err()
				}
				h.logger.Warn("embedding failed, using zero vector",
					slog.Int("position", positions[j]),
					slog.Any("error", err))
				vec = ZeroVector(dim)
				stats.ZeroVectors++
			}
			vectors[positions[j]] = vec
		}
	}

	return vectors, stats, nil
}

func (h *Handle) embedOne(ctx context.Context, text string, dim int) ([]float32, error) {
	emb, err := h.provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: Truncate(text, h.maxChars)})
	if err != nil {
		return nil, err
	}
	if len(emb.Vector) != dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb.Vector), dim)
	}
	return NormalizeVector(emb.Vector), nil
}

func dimensionsMatch(embs []*Embedding, dim int) bool {
	for _, e := range embs {
		if e == nil || len(e.Vector) != dim {
			return false
		}
	}
	return true
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
