package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dshills/cppcontext-mcp/internal/embedder"
	"github.com/dshills/cppcontext-mcp/internal/fuzzy"
	"github.com/dshills/cppcontext-mcp/internal/intent"
	"github.com/dshills/cppcontext-mcp/internal/parser"
	"github.com/dshills/cppcontext-mcp/internal/storage"
	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// Structural lookup policy
const (
	FuzzyThreshold  = 0.75
	MaxFuzzyResults = 3
)

// ErrEmptyQuestion is returned for blank questions
var ErrEmptyQuestion = errors.New("question cannot be empty")

// QueryRequest contains parameters for a query
type QueryRequest struct {
	Question string
	TopK     int
	Scope    Scope
	Filters  *types.FilterSpec
	NoCache  bool
}

// loaded is one build opened for serving. Its catalog stays open until it
// is retired and the last query holding it has released it.
type loaded struct {
	snap    *storage.Snapshot
	catalog *storage.SQLiteCatalog
	names   []string

	mu      sync.Mutex
	refs    int
	retired bool
	closed  bool
}

func (l *loaded) hold() {
	l.mu.Lock()
	l.refs++
	l.mu.Unlock()
}

func (l *loaded) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refs--
	l.closeIfIdle()
}

// retire marks l as replaced. It is closed now or by the last release.
func (l *loaded) retire() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.retired = true
	l.closeIfIdle()
}

func (l *loaded) closeIfIdle() {
	if l.retired && l.refs == 0 && !l.closed {
		l.closed = true
		if l.catalog != nil {
			_ = l.catalog.Close()
		}
	}
}

func (l *loaded) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Options configure a Searcher
type Options struct {
	Cache  ResultCache // nil disables result caching
	Logger *slog.Logger
}

// Searcher answers questions against the live build. Queries run
// concurrently over an immutable snapshot; a new build is picked up on the
// next query after the CURRENT pointer moves.
type Searcher struct {
	store      *storage.Store
	handle     *embedder.Handle
	classifier *intent.Classifier
	extractor  *parser.Extractor
	cache      ResultCache
	logger     *slog.Logger

	reloadMu sync.Mutex
	mu       sync.RWMutex
	current  *loaded
}

// New creates a Searcher. Nothing is loaded until the first query.
func New(store *storage.Store, handle *embedder.Handle, opts Options) *Searcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		store:      store,
		handle:     handle,
		classifier: intent.New(),
		extractor:  parser.New(),
		cache:      opts.Cache,
		logger:     logger,
	}
}

// Close retires the served build and closes the cache. Queries still
// running keep their catalog until they finish.
func (s *Searcher) Close() error {
	s.mu.Lock()
	s.current.retire()
	s.current = nil
	s.mu.Unlock()
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

// Reload opens the live build, replacing the one being served
func (s *Searcher) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	return s.reload(ctx)
}

func (s *Searcher) reload(ctx context.Context) error {
	snap, err := s.store.Load(s.handle.Dimension())
	if err != nil {
		return err
	}
	catalog, err := storage.OpenCatalog(ctx, snap.CatalogPath())
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalid, err)
	}
	names, err := catalog.EntityNames(ctx)
	if err != nil {
		_ = catalog.Close()
		return err
	}

	s.mu.Lock()
	s.current.retire()
	s.current = &loaded{snap: snap, catalog: catalog, names: names}
	s.mu.Unlock()

	s.extractor.Reset()
	if s.cache != nil {
		if err := s.cache.Purge(ctx); err != nil {
			s.logger.Warn("failed to purge result cache", slog.Any("error", err))
		}
	}
	s.logger.Info("serving build",
		slog.String("build_id", snap.BuildID),
		slog.Int("chunks", snap.Len()),
		slog.Int("entities", len(names)))
	return nil
}

// acquire returns the build to serve, reloading when CURRENT has moved.
// The caller must release the returned build.
func (s *Searcher) acquire(ctx context.Context) (*loaded, error) {
	id, err := s.store.CurrentBuildID()
	if err != nil {
		return nil, err
	}

	if cur := s.holdCurrent(id); cur != nil {
		return cur, nil
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if cur := s.holdCurrent(id); cur != nil {
		return cur, nil
	}
	if err := s.reload(ctx); err != nil {
		return nil, err
	}
	if cur := s.holdCurrent(""); cur != nil {
		return cur, nil
	}
	return nil, errors.New("searcher closed")
}

// holdCurrent holds the served build if it matches id. An empty id matches
// any build.
func (s *Searcher) holdCurrent(id string) *loaded {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.current
	if cur == nil || (id != "" && cur.snap.BuildID != id) {
		return nil
	}
	cur.hold()
	return cur
}

// Classify exposes the intent classifier
func (s *Searcher) Classify(question string) types.QueryIntent {
	return s.classifier.Classify(question)
}

// Query classifies the question and runs the structural and vector paths it
// calls for. Structural hits are reported ahead of vector hits; the vector
// path runs for semantic and hybrid questions, or when the structural path
// found nothing.
func (s *Searcher) Query(ctx context.Context, req QueryRequest) (*types.QueryResponse, error) {
	start := time.Now()
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return nil, ErrEmptyQuestion
	}
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}

	cur, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.release()

	var key string
	if s.cache != nil && !req.NoCache {
		key = CacheKey(cur.snap.BuildID, req)
		if cached, ok := s.cache.Get(ctx, key); ok {
			cached.CacheHit = true
			cached.Timing.Total = time.Since(start)
			return cached, nil
		}
	}

	resp := &types.QueryResponse{
		DefinitionResults: make([]types.DefinitionResult, 0),
		SemanticResults:   make([]types.SemanticResult, 0),
	}

	t := time.Now()
	resp.Intent = s.classifier.Classify(req.Question)
	resp.Timing.Classify = time.Since(t)

	if resp.Intent.WantsStructural() {
		t = time.Now()
		defs, err := s.lookup(ctx, cur, resp.Intent.EntityName, resp.Intent.EntityType)
		if err != nil {
			return nil, err
		}
		resp.DefinitionResults = defs
		resp.Timing.Structural = time.Since(t)
	}

	if resp.Intent.Type != types.IntentDefinition || len(resp.DefinitionResults) == 0 {
		t = time.Now()
		vec, err := s.handle.EmbedQuery(ctx, resp.Intent.EnhancedQuery)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		resp.Timing.Embed = time.Since(t)

		t = time.Now()
		hits, err := Rank(cur.snap.Metadata.Items, cur.snap.Vectors, vec, req.TopK, req.Scope, req.Filters)
		switch {
		case errors.Is(err, ErrNoCandidates) && len(resp.DefinitionResults) > 0:
			s.logger.Debug("filters excluded every chunk", slog.Int("definitions", len(resp.DefinitionResults)))
		case err != nil:
			return nil, err
		default:
			resp.SemanticResults = hits
		}
		resp.Timing.Search = time.Since(t)
	}

	resp.Timing.Total = time.Since(start)

	if key != "" {
		if err := s.cache.Set(ctx, key, resp); err != nil {
			s.logger.Warn("failed to cache response", slog.Any("error", err))
		}
	}

	s.logger.Debug("query answered",
		slog.String("intent", string(resp.Intent.Type)),
		slog.String("rule", resp.Intent.Rule),
		slog.Int("definitions", len(resp.DefinitionResults)),
		slog.Int("semantic", len(resp.SemanticResults)),
		slog.Duration("total", resp.Timing.Total))
	return resp, nil
}

// Describe resolves one entity name through the structural path only
func (s *Searcher) Describe(ctx context.Context, name string) ([]types.DefinitionResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyQuestion
	}
	cur, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.release()
	return s.lookup(ctx, cur, name, "")
}

// lookup resolves name exactly, then case-insensitively, then fuzzily over
// the catalog's names.
func (s *Searcher) lookup(ctx context.Context, cur *loaded, name string, kind types.EntityKind) ([]types.DefinitionResult, error) {
	records, err := cur.catalog.LookupEntity(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		if res, ok := s.resolve(name, pickRecord(records, kind), true, 1.0); ok {
			return []types.DefinitionResult{res}, nil
		}
	}

	records, err = cur.catalog.LookupEntityFold(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		if res, ok := s.resolve(name, pickRecord(records, kind), false, fuzzy.CaseInsensitiveScore); ok {
			return []types.DefinitionResult{res}, nil
		}
	}

	results := make([]types.DefinitionResult, 0)
	for _, m := range fuzzy.BestMatches(name, cur.names, FuzzyThreshold, MaxFuzzyResults) {
		records, err := cur.catalog.LookupEntity(ctx, m.Candidate)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			continue
		}
		if res, ok := s.resolve(name, pickRecord(records, kind), false, m.Score); ok {
			results = append(results, res)
		}
	}
	return results, nil
}

// resolve reads the defining file and builds the entity graph
func (s *Searcher) resolve(query string, rec storage.EntityRecord, exact bool, score float64) (types.DefinitionResult, bool) {
	content, err := os.ReadFile(rec.Path)
	if err != nil {
		s.logger.Warn("defining file unreadable", slog.String("path", rec.Path), slog.Any("error", err))
		return types.DefinitionResult{}, false
	}
	text := string(content)

	entity, ok := s.extractor.Cached(rec.Name)
	if !ok || entity.Path != rec.Path {
		entity = s.extractor.BuildGraph(rec.Name, text, rec.Path)
	}

	res := types.DefinitionResult{
		Query:       query,
		MatchedName: rec.Name,
		Exact:       exact,
		Score:       score,
		Line:        rec.Line,
		Entity:      entity,
	}
	if def, ok := parser.FindDefinition(text, rec.Name); ok {
		res.Definition = def.Block
		res.Line = def.Line
	}
	return res, true
}

// pickRecord prefers the requested kind, then type definitions over
// functions and delegates, then headers.
func pickRecord(records []storage.EntityRecord, kind types.EntityKind) storage.EntityRecord {
	ranked := append([]storage.EntityRecord(nil), records...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := recordRank(ranked[i], kind), recordRank(ranked[j], kind)
		return ri < rj
	})
	return ranked[0]
}

func recordRank(r storage.EntityRecord, kind types.EntityKind) int {
	rank := 0
	if kind.Known() && r.Kind != kind {
		rank += 100
	}
	switch r.Kind {
	case types.KindStruct, types.KindClass, types.KindEnum:
	case types.KindFunction:
		rank += 10
	default:
		rank += 20
	}
	if !types.IsHeaderPath(r.Path) {
		rank++
	}
	return rank
}

// Stats returns catalog statistics for the build being served
func (s *Searcher) Stats(ctx context.Context) (*storage.CatalogStats, error) {
	cur, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.release()
	return cur.catalog.Stats(ctx)
}
