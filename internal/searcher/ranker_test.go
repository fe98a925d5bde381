package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/cppcontext-mcp/internal/embedder"
	"github.com/dshills/cppcontext-mcp/internal/storage"
	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// rankFixture is four chunks with unit vectors in a 3-dimensional space
func rankFixture(t *testing.T) ([]types.ChunkMeta, *storage.Matrix) {
	t.Helper()
	items := []types.ChunkMeta{
		{Path: "/proj/Source/Weapon.h", Entities: []string{"AWeapon"}, EntityTypes: []string{"class"}, HasUClass: true, IsHeader: true, Origin: types.OriginProject},
		{Path: "/proj/Source/Weapon.cpp", Entities: []string{"AWeapon"}, IsImplementation: true, Origin: types.OriginProject},
		{Path: "/engine/Runtime/HitResult.h", Entities: []string{"FHitResult"}, EntityTypes: []string{"struct"}, HasUStruct: true, HasUProperty: true, IsHeader: true, Origin: types.OriginEngine},
		{Path: "/engine/Runtime/Math.cpp", IsImplementation: true, Origin: types.OriginEngine},
	}
	vectors, err := storage.NewMatrix([][]float32{
		{1, 0, 0},
		{0.8, 0.6, 0},
		{0, 1, 0},
		{-1, 0, 0},
	}, 3)
	require.NoError(t, err)
	return items, vectors
}

func positions(results []types.SemanticResult) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.Position
	}
	return out
}

func TestRankOrdersBySimilarity(t *testing.T) {
	items, vectors := rankFixture(t)

	// unnormalized query is normalized before scoring
	results, err := Rank(items, vectors, []float32{2, 0, 0}, 3, Scope{}, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []int{0, 1, 2}, positions(results))
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.8, results[1].Score, 1e-6)
	assert.InDelta(t, 0.0, results[2].Score, 1e-6)
	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
		assert.Equal(t, items[r.Position].Path, r.Chunk.Path)
	}
}

func TestRankTiesKeepStoreOrder(t *testing.T) {
	items, vectors := rankFixture(t)

	// rows 0 and 2 score the same against the diagonal
	results, err := Rank(items, vectors, []float32{1, 1, 0}, 10, Scope{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 2, 3}, positions(results))
	assert.InDelta(t, results[1].Score, results[2].Score, 1e-9)
}

func TestRankTopK(t *testing.T) {
	items, vectors := rankFixture(t)

	results, err := Rank(items, vectors, []float32{1, 0, 0}, 0, Scope{}, nil)
	require.NoError(t, err)
	assert.Len(t, results, len(items), "default top K exceeds the fixture")

	results, err = Rank(items, vectors, []float32{1, 0, 0}, 1, Scope{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, positions(results))
}

func TestRankDimensionMismatch(t *testing.T) {
	items, vectors := rankFixture(t)
	_, err := Rank(items, vectors, []float32{1, 0}, 3, Scope{}, nil)
	assert.ErrorIs(t, err, embedder.ErrDimensionMismatch)
}

func TestRankScope(t *testing.T) {
	items, vectors := rankFixture(t)

	t.Run("path substring", func(t *testing.T) {
		results, err := Rank(items, vectors, []float32{1, 0, 0}, 10, Scope{PathContains: "/engine/"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3}, positions(results))
	})

	t.Run("extensions with and without dot", func(t *testing.T) {
		results, err := Rank(items, vectors, []float32{1, 0, 0}, 10, Scope{Extensions: []string{"CPP", ".hpp"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 3}, positions(results))
	})
}

func TestRankFilters(t *testing.T) {
	items, vectors := rankFixture(t)

	results, err := Rank(items, vectors, []float32{1, 0, 0}, 10, Scope{},
		&types.FilterSpec{EntityType: types.KindStruct, HasMacro: types.MacroUProperty})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, positions(results))

	results, err = Rank(items, vectors, []float32{1, 0, 0}, 10, Scope{},
		&types.FilterSpec{Origin: types.OriginProject, FileKind: types.FileImplementation})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, positions(results))
}

func TestRankNoCandidates(t *testing.T) {
	items, vectors := rankFixture(t)

	_, err := Rank(items, vectors, []float32{1, 0, 0}, 10, Scope{},
		&types.FilterSpec{Origin: types.OriginEngine, HasMacro: types.MacroUClass})
	assert.ErrorIs(t, err, ErrNoCandidates)

	_, err = Rank(items, vectors, []float32{1, 0, 0}, 10, Scope{PathContains: "/nowhere/"}, nil)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestRankBoosts(t *testing.T) {
	items, vectors := rankFixture(t)
	query := []float32{0.8, 0.6, 0} // row 1 scores 1.0, row 0 scores 0.8, row 2 scores 0.6

	t.Run("entity boost reorders", func(t *testing.T) {
		results, err := Rank(items, vectors, query, 10, Scope{}, &types.FilterSpec{BoostEntities: []string{"FHitResult"}})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 0, 2, 3}, positions(results))
		assert.InDelta(t, 0.6*EntityBoost, results[2].Score, 1e-6)
		assert.InDelta(t, 0.6, results[2].RawScore, 1e-6)

		results, err = Rank(items, vectors, query, 10, Scope{}, &types.FilterSpec{BoostEntities: []string{"AWeapon", "FHitResult"}})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 0, 2, 3}, positions(results))
		assert.InDelta(t, 0.8*EntityBoost, results[1].Score, 1e-6)
	})

	t.Run("macro boost", func(t *testing.T) {
		results, err := Rank(items, vectors, []float32{0.6, 0.8, 0}, 10, Scope{}, &types.FilterSpec{BoostMacros: true})
		require.NoError(t, err)
		// row 1 carries no macro and keeps 0.96; row 2 rises from 0.8 to 0.92
		assert.Equal(t, 1, results[0].Position)
		assert.Equal(t, 2, results[1].Position)
		assert.InDelta(t, 0.8*MacroBoost, results[1].Score, 1e-6)
	})

	t.Run("negative similarity is not boosted", func(t *testing.T) {
		results, err := Rank(items, vectors, []float32{-1, 0, 0}, 10, Scope{},
			&types.FilterSpec{BoostEntities: []string{"AWeapon"}, BoostMacros: true})
		require.NoError(t, err)
		assert.Equal(t, 3, results[0].Position)
		last := results[len(results)-1]
		assert.Equal(t, 0, last.Position)
		assert.InDelta(t, -1.0, last.Score, 1e-6)
	})
}
