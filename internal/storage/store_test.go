package storage

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

func sampleItems(n int) []types.ChunkMeta {
	items := make([]types.ChunkMeta, n)
	for i := range items {
		items[i] = types.ChunkMeta{
			Path:        "Game/Weapon.h",
			ChunkIndex:  i,
			TotalChunks: n,
			Text:        "chunk",
			ContentHash: "abc",
			ChunkSize:   2000,
			Overlap:     200,
		}
	}
	return items
}

func sampleMatrix(t *testing.T, rows, dim int) *Matrix {
	t.Helper()
	data := make([][]float32, rows)
	for i := range data {
		data[i] = make([]float32, dim)
		data[i][i%dim] = 1
	}
	m, err := NewMatrix(data, dim)
	require.NoError(t, err)
	return m
}

func publish(t *testing.T, st *Store, rows, dim int) string {
	t.Helper()
	w, err := st.BeginBuild()
	require.NoError(t, err)
	meta := &Metadata{Items: sampleItems(rows), Dimension: dim, Provider: "local", Model: "hash", ChunkSize: 2000, Overlap: 200}
	hashes := HashCache{"abc": {Path: "Game/Weapon.h", ChunkCount: rows}}
	require.NoError(t, w.Write(meta, sampleMatrix(t, rows, dim), hashes))
	require.NoError(t, w.Commit())
	return w.ID()
}

func TestStore_MissingBeforeFirstBuild(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "index"), nil)

	_, err := st.Load(0)
	assert.ErrorIs(t, err, ErrMissing)
	assert.NotErrorIs(t, err, ErrInvalid)

	report := st.Status(0)
	assert.Equal(t, StateMissing, report.State)
	assert.Contains(t, report.Remediation, "index")
}

func TestStore_BuildAndLoad(t *testing.T) {
	st := NewStore(t.TempDir(), nil)
	id := publish(t, st, 3, 4)

	snap, err := st.Load(4)
	require.NoError(t, err)
	assert.Equal(t, id, snap.BuildID)
	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, snap.Len(), snap.Vectors.Rows)
	assert.Equal(t, id, snap.Metadata.BuildID)
	assert.Equal(t, FormatVersion, snap.Metadata.FormatVersion)
	assert.False(t, snap.Metadata.BuiltAt.IsZero())
	assert.Equal(t, HashEntry{Path: "Game/Weapon.h", ChunkCount: 3}, snap.Hashes["abc"])
	assert.Equal(t, []int{0, 1, 2}, snap.PathIndex()["Game/Weapon.h"])

	report := st.Status(4)
	assert.Equal(t, StateReady, report.State)
	assert.Equal(t, 3, report.Items)
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, "local", report.Provider)
}

func TestStore_SwapKeepsPreviousAndPrunesOlder(t *testing.T) {
	st := NewStore(t.TempDir(), nil)
	first := publish(t, st, 1, 4)
	second := publish(t, st, 2, 4)
	third := publish(t, st, 3, 4)

	current, err := st.CurrentBuildID()
	require.NoError(t, err)
	assert.Equal(t, third, current)

	assert.NoDirExists(t, st.buildDir(first))
	assert.DirExists(t, st.buildDir(second))
	assert.DirExists(t, st.buildDir(third))
	assert.NoFileExists(t, filepath.Join(st.Root(), CurrentFile+".tmp"))
}

func TestStore_AbortLeavesLiveBuild(t *testing.T) {
	st := NewStore(t.TempDir(), nil)
	live := publish(t, st, 2, 4)

	w, err := st.BeginBuild()
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	assert.NoDirExists(t, w.Dir())

	current, err := st.CurrentBuildID()
	require.NoError(t, err)
	assert.Equal(t, live, current)

	// Abort after commit is a no-op
	w2, err := st.BeginBuild()
	require.NoError(t, err)
	require.NoError(t, w2.Write(&Metadata{Items: sampleItems(1), Dimension: 4}, sampleMatrix(t, 1, 4), nil))
	require.NoError(t, w2.Commit())
	require.NoError(t, w2.Abort())
	assert.DirExists(t, w2.Dir())
}

func TestBuildWriter_RejectsMisalignedInput(t *testing.T) {
	st := NewStore(t.TempDir(), nil)
	w, err := st.BeginBuild()
	require.NoError(t, err)
	defer func() { _ = w.Abort() }()

	err = w.Write(&Metadata{Items: sampleItems(2), Dimension: 4}, sampleMatrix(t, 3, 4), nil)
	assert.Error(t, err)

	err = w.Write(&Metadata{Items: sampleItems(3), Dimension: 8}, sampleMatrix(t, 3, 4), nil)
	assert.Error(t, err)

	assert.Error(t, w.Commit(), "commit without a successful write")
}

func TestStore_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(t *testing.T, dir string)
		dim     int
		reason  string
	}{
		{
			name: "corrupt metadata",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte("{not json"), 0o644))
			},
			reason: "corrupt",
		},
		{
			name: "empty metadata",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), nil, 0o644))
			},
			reason: "empty",
		},
		{
			name: "empty vectors",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, VectorsFile), nil, 0o644))
			},
			reason: "empty",
		},
		{
			name: "length mismatch",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, WriteVectors(filepath.Join(dir, VectorsFile), sampleMatrix(t, 2, 4)))
			},
			reason: "length mismatch",
		},
		{
			name: "non-finite",
			corrupt: func(t *testing.T, dir string) {
				m := sampleMatrix(t, 3, 4)
				m.Data[5] = float32(math.Inf(1))
				require.NoError(t, WriteVectors(filepath.Join(dir, VectorsFile), m))
			},
			reason: "non-finite",
		},
		{
			name:    "provider dimension mismatch",
			corrupt: func(t *testing.T, dir string) {},
			dim:     768,
			reason:  "dimension mismatch",
		},
		{
			name: "missing hash cache",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, os.Remove(filepath.Join(dir, HashCacheFile)))
			},
			reason: HashCacheFile,
		},
		{
			name: "missing build directory",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, os.RemoveAll(dir))
			},
			reason: "missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewStore(t.TempDir(), nil)
			id := publish(t, st, 3, 4)
			tt.corrupt(t, st.buildDir(id))

			_, err := st.Load(tt.dim)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.NotErrorIs(t, err, ErrMissing)
			assert.Contains(t, err.Error(), tt.reason)

			report := st.Status(tt.dim)
			assert.Equal(t, StateInvalid, report.State)
			assert.Contains(t, report.Remediation, "force")
		})
	}
}

func TestStore_InvalidPointer(t *testing.T) {
	st := NewStore(t.TempDir(), nil)
	require.NoError(t, os.WriteFile(filepath.Join(st.Root(), CurrentFile), []byte("not-a-uuid\n"), 0o644))

	_, err := st.CurrentBuildID()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCheckFormat(t *testing.T) {
	assert.NoError(t, checkFormat("1.0.0"))
	assert.NoError(t, checkFormat("1.4.2"))
	assert.ErrorIs(t, checkFormat("2.0.0"), ErrInvalid)
	assert.ErrorIs(t, checkFormat(""), ErrInvalid)
	assert.ErrorIs(t, checkFormat("banana"), ErrInvalid)
}
