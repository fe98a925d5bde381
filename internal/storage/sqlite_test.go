package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteCatalog {
	// Use in-memory database for testing
	catalog, err := OpenCatalog(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NotNil(t, catalog)
	t.Cleanup(func() { _ = catalog.Close() })
	return catalog
}

func addFile(t *testing.T, c *SQLiteCatalog, path string, origin types.Origin, decls ...types.Declaration) *FileRecord {
	t.Helper()
	ctx := context.Background()
	f := &FileRecord{Path: path, Origin: origin, ContentHash: "hash-" + path, ChunkCount: 1, SizeBytes: 100}
	require.NoError(t, c.UpsertFile(ctx, f))
	require.NoError(t, c.ReplaceDeclarations(ctx, f.ID, decls))
	return f
}

func TestOpenCatalog_AppliesMigrations(t *testing.T) {
	c := setupTestDB(t)

	v, err := SchemaVersion(context.Background(), c.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	c := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, c.db))

	var n int
	require.NoError(t, c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&n))
	assert.Equal(t, len(AllMigrations), n)
}

func TestRollbackMigration(t *testing.T) {
	c := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, c.db))
	v, err := SchemaVersion(ctx, c.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())

	require.NoError(t, RollbackMigration(ctx, c.db))
	v, err = SchemaVersion(ctx, c.db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", v.String())

	assert.Error(t, RollbackMigration(ctx, c.db))

	// Everything comes back
	require.NoError(t, ApplyMigrations(ctx, c.db))
	v, err = SchemaVersion(ctx, c.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())
}

func TestUpsertFile(t *testing.T) {
	c := setupTestDB(t)
	ctx := context.Background()

	f := &FileRecord{Path: "Engine/HitResult.h", Origin: types.OriginEngine, ContentHash: "aaa", ChunkCount: 2}
	require.NoError(t, c.UpsertFile(ctx, f))
	assert.Greater(t, f.ID, int64(0))
	firstID := f.ID

	// Same path updates in place
	again := &FileRecord{Path: "Engine/HitResult.h", Origin: types.OriginEngine, ContentHash: "bbb", ChunkCount: 3}
	require.NoError(t, c.UpsertFile(ctx, again))
	assert.Equal(t, firstID, again.ID)

	got, err := c.GetFile(ctx, "Engine/HitResult.h")
	require.NoError(t, err)
	assert.Equal(t, "bbb", got.ContentHash)
	assert.Equal(t, 3, got.ChunkCount)
	assert.Equal(t, types.OriginEngine, got.Origin)
}

func TestGetFile_NotFound(t *testing.T) {
	c := setupTestDB(t)

	_, err := c.GetFile(context.Background(), "nope.h")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupEntity(t *testing.T) {
	c := setupTestDB(t)
	ctx := context.Background()

	addFile(t, c, "Engine/HitResult.h", types.OriginEngine,
		types.Declaration{Name: "FHitResult", Kind: types.KindStruct, Line: 12},
		types.Declaration{Name: "FHitResult", Kind: types.KindStruct, Line: 90}, // duplicate ignored
	)
	addFile(t, c, "Game/Weapon.h", types.OriginProject,
		types.Declaration{Name: "AWeapon", Kind: types.KindClass, Line: 29},
		types.Declaration{Name: "Fire", Kind: types.KindFunction, Line: 40},
	)

	hits, err := c.LookupEntity(ctx, "FHitResult")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, EntityRecord{
		Name: "FHitResult", Kind: types.KindStruct, Path: "Engine/HitResult.h", Line: 12, Origin: types.OriginEngine,
	}, hits[0])

	none, err := c.LookupEntity(ctx, "fhitresult")
	require.NoError(t, err)
	assert.Empty(t, none)

	folded, err := c.LookupEntityFold(ctx, "fhitresult")
	require.NoError(t, err)
	require.Len(t, folded, 1)
	assert.Equal(t, "FHitResult", folded[0].Name)
}

func TestReplaceDeclarations_ClearsPrevious(t *testing.T) {
	c := setupTestDB(t)
	ctx := context.Background()

	f := addFile(t, c, "Game/Weapon.h", types.OriginProject,
		types.Declaration{Name: "AWeapon", Kind: types.KindClass, Line: 29},
	)
	require.NoError(t, c.ReplaceDeclarations(ctx, f.ID, []types.Declaration{
		{Name: "ARifle", Kind: types.KindClass, Line: 5},
	}))

	hits, err := c.LookupEntity(ctx, "AWeapon")
	require.NoError(t, err)
	assert.Empty(t, hits)

	names, err := c.EntityNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ARifle"}, names)
}

func TestListEntities(t *testing.T) {
	c := setupTestDB(t)
	ctx := context.Background()

	addFile(t, c, "Game/Weapon.h", types.OriginProject,
		types.Declaration{Name: "AWeapon", Kind: types.KindClass, Line: 29},
		types.Declaration{Name: "FWeaponStats", Kind: types.KindStruct, Line: 17},
		types.Declaration{Name: "EWeaponState", Kind: types.KindEnum, Line: 11},
		types.Declaration{Name: "ARifle", Kind: types.KindClass, Line: 60},
	)

	all, err := c.ListEntities(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	classes, err := c.ListEntities(ctx, types.KindClass, 0)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "ARifle", classes[0].Name)
	assert.Equal(t, "AWeapon", classes[1].Name)

	limited, err := c.ListEntities(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	names, err := c.EntityNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ARifle", "AWeapon", "EWeaponState", "FWeaponStats"}, names)
}

func TestStats(t *testing.T) {
	c := setupTestDB(t)
	ctx := context.Background()

	addFile(t, c, "a.h", types.OriginProject,
		types.Declaration{Name: "AWeapon", Kind: types.KindClass, Line: 1},
		types.Declaration{Name: "FStats", Kind: types.KindStruct, Line: 2},
	)
	addFile(t, c, "b.h", types.OriginEngine,
		types.Declaration{Name: "ARifle", Kind: types.KindClass, Line: 1},
	)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 3, stats.Entities)
	assert.Equal(t, 2, stats.ByKind[types.KindClass])
	assert.Equal(t, 1, stats.ByKind[types.KindStruct])
	assert.Greater(t, stats.SizeMB, 0.0)
}

func TestBuilds(t *testing.T) {
	c := setupTestDB(t)
	ctx := context.Background()

	_, err := c.LatestBuild(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	older := &BuildRecord{BuildID: "b1", Provider: "local", Model: "m", Dimension: 8, ChunkSize: 2000, Overlap: 200,
		BuiltAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &BuildRecord{BuildID: "b2", Provider: "local", Model: "m", Dimension: 8, ChunkSize: 2000, Overlap: 200,
		FileCount: 3, ChunkCount: 7, BuiltAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, c.RecordBuild(ctx, older))
	require.NoError(t, c.RecordBuild(ctx, newer))

	latest, err := c.LatestBuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b2", latest.BuildID)
	assert.Equal(t, 7, latest.ChunkCount)

	assert.Error(t, c.RecordBuild(ctx, &BuildRecord{}))
}

func TestTransaction(t *testing.T) {
	c := setupTestDB(t)
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		tx, err := c.BeginTx(ctx)
		require.NoError(t, err)

		f := &FileRecord{Path: "committed.h", Origin: types.OriginProject, ContentHash: "x"}
		require.NoError(t, tx.UpsertFile(ctx, f))
		require.NoError(t, tx.ReplaceDeclarations(ctx, f.ID, []types.Declaration{
			{Name: "UCommitted", Kind: types.KindClass, Line: 3},
		}))
		require.NoError(t, tx.Commit())

		hits, err := c.LookupEntity(ctx, "UCommitted")
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("rollback", func(t *testing.T) {
		tx, err := c.BeginTx(ctx)
		require.NoError(t, err)

		f := &FileRecord{Path: "rolled.h", Origin: types.OriginProject, ContentHash: "y"}
		require.NoError(t, tx.UpsertFile(ctx, f))
		require.NoError(t, tx.Rollback())

		_, err = c.GetFile(ctx, "rolled.h")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
