package searcher

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/cppcontext-mcp/internal/embedder"
	"github.com/dshills/cppcontext-mcp/internal/storage"
	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// Ranking policy
const (
	DefaultTopK = 5
	MaxTopK     = 100

	EntityBoost = 1.25
	MacroBoost  = 1.15
)

// ErrNoCandidates is returned when filtering leaves nothing to score
var ErrNoCandidates = errors.New("no candidates match the filters")

// Scope restricts candidates by path
type Scope struct {
	PathContains string   `json:"path_contains,omitempty"`
	Extensions   []string `json:"extensions,omitempty"` // ".h" or "h"
}

// IsZero reports whether the scope restricts anything
func (s Scope) IsZero() bool {
	return s.PathContains == "" && len(s.Extensions) == 0
}

// Match applies the scope to one item
func (s Scope) Match(m *types.ChunkMeta) bool {
	if s.PathContains != "" && !strings.Contains(m.Path, s.PathContains) {
		return false
	}
	if len(s.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(m.Path))
	for _, e := range s.Extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if e == ext {
			return true
		}
	}
	return false
}

// Rank scores the candidates that pass scope and filters against query and
// returns the top K after boosting. Boosts only scale positive similarities.
// Equal scores keep store order.
func Rank(items []types.ChunkMeta, vectors *storage.Matrix, query []float32, topK int, scope Scope, filters *types.FilterSpec) ([]types.SemanticResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if len(query) != vectors.Dim {
		return nil, embedder.ErrDimensionMismatch
	}
	q := embedder.NormalizeVector(append([]float32(nil), query...))

	type scored struct {
		pos   int
		raw   float64
		score float64
	}
	candidates := make([]scored, 0, len(items))

	for i := range items {
		item := &items[i]
		if !scope.Match(item) || !filters.Match(item) {
			continue
		}
		raw := storage.Dot(q, vectors.Row(i))
		score := raw
		if raw > 0 {
			score *= boostFactor(item, filters)
		}
		candidates = append(candidates, scored{pos: i, raw: raw, score: score})
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]types.SemanticResult, len(candidates))
	for i, c := range candidates {
		results[i] = types.SemanticResult{
			Rank:     i + 1,
			Score:    c.score,
			RawScore: c.raw,
			Position: c.pos,
			Chunk:    items[c.pos],
		}
	}
	return results, nil
}

// boostFactor multiplies the entity and macro boosts that apply to m
func boostFactor(m *types.ChunkMeta, filters *types.FilterSpec) float64 {
	if filters == nil {
		return 1
	}
	factor := 1.0
	for _, name := range filters.BoostEntities {
		if m.ReferencesEntity(name) {
			factor *= EntityBoost
			break
		}
	}
	if filters.BoostMacros && m.HasAnyMacro() {
		factor *= MacroBoost
	}
	return factor
}
