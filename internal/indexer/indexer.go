package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/cppcontext-mcp/internal/chunker"
	"github.com/dshills/cppcontext-mcp/internal/embedder"
	"github.com/dshills/cppcontext-mcp/internal/enricher"
	"github.com/dshills/cppcontext-mcp/internal/parser"
	"github.com/dshills/cppcontext-mcp/internal/storage"
	"github.com/dshills/cppcontext-mcp/pkg/types"
)

var (
	// ErrIndexingInProgress is returned when a build is already running
	ErrIndexingInProgress = errors.New("indexing already in progress")

	// ErrNoChunks is returned when every discovered file was empty or unreadable
	ErrNoChunks = errors.New("no chunks produced")
)

// Indexer coordinates the build pipeline:
// discover -> read/hash/chunk/enrich -> embed -> persist -> swap
type Indexer struct {
	store   *storage.Store
	handle  *embedder.Handle
	logger  *slog.Logger
	lock    IndexLock
	workers int
}

// Config contains configuration for one build
type Config struct {
	Roots     []Root
	Discovery DiscoveryOptions

	ChunkSize int // zero selects chunker.DefaultChunkSize and DefaultOverlap
	Overlap   int
	Workers   int // default runtime.NumCPU()

	// Incremental reuses vectors of unchanged files from the live build.
	// Force disables reuse even when Incremental is set.
	Incremental bool
	Force       bool
}

// Statistics contains statistics about a build
type Statistics struct {
	BuildID         string
	FilesDiscovered int
	FilesIndexed    int // files that produced at least one chunk
	FilesReused     int
	FilesEmpty      int
	FilesFailed     int
	ChunksTotal     int
	ChunksCreated   int // chunks sent to the embedding provider
	ChunksReused    int
	Declarations    int
	Embedding       embedder.EmbedStats
	Duration        time.Duration
	ErrorMessages   []string
}

// New creates a new Indexer writing into store and embedding through handle
func New(store *storage.Store, handle *embedder.Handle, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		store:   store,
		handle:  handle,
		logger:  logger,
		workers: runtime.NumCPU(),
	}
}

// Store returns the store the indexer publishes into
func (idx *Indexer) Store() *storage.Store { return idx.store }

// Busy reports whether a build is running
func (idx *Indexer) Busy() bool { return idx.lock.Held() }

// fileResult is the per-file output of the worker stage
type fileResult struct {
	file   SourceFile
	hash   string
	size   int64
	items  []types.ChunkMeta
	decls  []types.Declaration
	reused []int // positions in the previous snapshot, aligned with items
	err    error
}

// Build runs one full build and publishes it. A cancelled or failed build
// leaves the live build untouched.
func (idx *Indexer) Build(ctx context.Context, cfg Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	start := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = chunker.DefaultChunkSize
		cfg.Overlap = chunker.DefaultOverlap
	}
	ch, err := chunker.New(cfg.ChunkSize, cfg.Overlap)
	if err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = idx.workers
	}

	files, err := Discover(cfg.Roots, cfg.Discovery, idx.logger)
	if err != nil {
		return nil, err
	}
	stats.FilesDiscovered = len(files)
	idx.logger.Info("discovered files", slog.Int("files", len(files)), slog.Int("roots", len(cfg.Roots)))

	prev := idx.previousBuild(cfg)

	results, err := idx.processFiles(ctx, files, ch, prev, workers)
	if err != nil {
		return nil, err
	}

	return idx.publish(ctx, ch, results, prev, stats, start)
}

// previousBuild loads the live build when its vectors may be reused
func (idx *Indexer) previousBuild(cfg Config) *reuseIndex {
	if !cfg.Incremental || cfg.Force {
		return nil
	}
	snap, err := idx.store.Load(idx.handle.Dimension())
	if err != nil {
		idx.logger.Info("no reusable build", slog.Any("reason", err))
		return nil
	}
	return newReuseIndex(snap)
}

// reuseIndex answers "can this file's vectors be copied from the live build"
type reuseIndex struct {
	snap   *storage.Snapshot
	byPath map[string][]int
}

func newReuseIndex(snap *storage.Snapshot) *reuseIndex {
	return &reuseIndex{snap: snap, byPath: snap.PathIndex()}
}

// positions returns the prior rows for path when the hash is cached, the
// cached chunk count equals the fresh count and the rows at that path were
// produced from the same content.
func (r *reuseIndex) positions(path, hash string, chunkCount int) []int {
	if r == nil {
		return nil
	}
	entry, ok := r.snap.Hashes[hash]
	if !ok || entry.ChunkCount != chunkCount {
		return nil
	}
	pos := r.byPath[path]
	if len(pos) != chunkCount {
		return nil
	}
	for _, p := range pos {
		if r.snap.Metadata.Items[p].ContentHash != hash {
			return nil
		}
	}
	return pos
}

// processFiles reads, hashes, chunks, enriches and scans each file on a
// bounded worker pool. Results keep discovery order.
func (idx *Indexer) processFiles(ctx context.Context, files []SourceFile, ch *chunker.Chunker, prev *reuseIndex, workers int) ([]fileResult, error) {
	results := make([]fileResult, len(files))
	semaphore := make(chan struct{}, workers)
	var processed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	for i := range files {
		select {
		case <-gctx.Done():
			_ = g.Wait()
			return nil, ctx.Err()
		case semaphore <- struct{}{}:
		}

		g.Go(func() error {
			defer func() { <-semaphore }()
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = processFile(files[i], ch, prev)
			processed.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx.logger.Debug("processed files", slog.Int("files", int(processed.Load())))
	return results, nil
}

func processFile(file SourceFile, ch *chunker.Chunker, prev *reuseIndex) fileResult {
	res := fileResult{file: file}

	content, err := os.ReadFile(file.Path)
	if err != nil {
		res.err = err
		return res
	}
	text := string(content)
	res.size = int64(len(content))
	res.hash = chunker.ContentHash(text)

	items := ch.Items(file.Path, text, res.hash, file.Origin)
	for i := range items {
		items[i] = enricher.Enrich(items[i].Text, items[i])
	}
	res.items = items
	res.decls = parser.FindDeclarations(text, file.Path)
	res.reused = prev.positions(file.Path, res.hash, len(items))
	return res
}

// publish embeds what could not be reused, writes a new build directory and
// swaps it live.
func (idx *Indexer) publish(ctx context.Context, ch *chunker.Chunker, results []fileResult,
	prev *reuseIndex, stats *Statistics, start time.Time) (*Statistics, error) {

	var (
		items   []types.ChunkMeta
		vectors [][]float32
		pending []int // positions in items awaiting embedding
		texts   []string
		hashes  = storage.HashCache{}
	)

	for _, res := range results {
		if res.err != nil {
			stats.FilesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", res.file.Path, res.err))
			idx.logger.Warn("failed to read file", slog.String("path", res.file.Path), slog.Any("error", res.err))
			continue
		}
		hashes[res.hash] = storage.HashEntry{Path: res.file.Path, ChunkCount: len(res.items)}
		stats.Declarations += len(res.decls)
		if len(res.items) == 0 {
			stats.FilesEmpty++
			continue
		}
		stats.FilesIndexed++

		if res.reused != nil {
			stats.FilesReused++
			for _, p := range res.reused {
				vectors = append(vectors, prev.snap.Vectors.Row(p))
			}
			items = append(items, res.items...)
			stats.ChunksReused += len(res.items)
			continue
		}

		for _, item := range res.items {
			pending = append(pending, len(items))
			texts = append(texts, item.Text)
			items = append(items, item)
			vectors = append(vectors, nil)
		}
	}

	if len(items) == 0 {
		return nil, ErrNoChunks
	}

	if len(texts) > 0 {
		embedded, embedStats, err := idx.handle.EmbedAll(ctx, texts)
		stats.Embedding = embedStats
		if err != nil {
			return nil, fmt.Errorf("embedding failed: %w", err)
		}
		for i, pos := range pending {
			vectors[pos] = embedded[i]
		}
	}
	stats.ChunksCreated = len(texts)
	stats.ChunksTotal = len(items)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matrix, err := storage.NewMatrix(vectors, idx.handle.Dimension())
	if err != nil {
		return nil, err
	}

	w, err := idx.store.BeginBuild()
	if err != nil {
		return nil, err
	}
	defer func() { _ = w.Abort() }()
	stats.BuildID = w.ID()

	if err := idx.writeCatalog(ctx, w, ch, results, stats); err != nil {
		return nil, err
	}

	meta := &storage.Metadata{
		Items:     items,
		Dimension: idx.handle.Dimension(),
		Provider:  idx.handle.Provider(),
		Model:     idx.handle.Model(),
		ChunkSize: ch.Size(),
		Overlap:   ch.Overlap(),
	}
	if err := w.Write(meta, matrix, hashes); err != nil {
		return nil, err
	}

	// Last cancellation point before the swap
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := w.Commit(); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(start)
	idx.logger.Info("build complete",
		slog.String("build_id", stats.BuildID),
		slog.Int("files", stats.FilesIndexed),
		slog.Int("chunks", stats.ChunksTotal),
		slog.Int("embedded", stats.ChunksCreated),
		slog.Int("reused", stats.ChunksReused),
		slog.Int("zero_vectors", stats.Embedding.ZeroVectors),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// writeCatalog records files and declarations in the new build's catalog
func (idx *Indexer) writeCatalog(ctx context.Context, w *storage.BuildWriter, ch *chunker.Chunker,
	results []fileResult, stats *Statistics) error {

	catalog, err := storage.OpenCatalog(ctx, w.CatalogPath())
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	tx, err := catalog.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, res := range results {
		if res.err != nil {
			continue
		}
		file := &storage.FileRecord{
			Path:        res.file.Path,
			Origin:      res.file.Origin,
			ContentHash: res.hash,
			ChunkCount:  len(res.items),
			SizeBytes:   res.size,
			IndexedAt:   now,
		}
		if err := tx.UpsertFile(ctx, file); err != nil {
			return err
		}
		if err := tx.ReplaceDeclarations(ctx, file.ID, res.decls); err != nil {
			return err
		}
	}

	build := &storage.BuildRecord{
		BuildID:    w.ID(),
		Provider:   idx.handle.Provider(),
		Model:      idx.handle.Model(),
		Dimension:  idx.handle.Dimension(),
		ChunkSize:  ch.Size(),
		Overlap:    ch.Overlap(),
		FileCount:  stats.FilesIndexed,
		ChunkCount: stats.ChunksTotal,
		BuiltAt:    now,
	}
	if err := tx.RecordBuild(ctx, build); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}
	return nil
}
