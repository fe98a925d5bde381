package indexer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

func relPaths(t *testing.T, root string, files []SourceFile) []string {
	t.Helper()
	out := make([]string, len(files))
	for i, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func TestDiscover_DefaultFilters(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	files, err := Discover([]Root{{Path: root, Origin: types.OriginProject}}, DiscoveryOptions{}, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Source/Game/Empty.h",
		"Source/Game/Pickup.h",
		"Source/Game/Weapon.cpp",
		"Source/Game/Weapon.h",
	}, relPaths(t, root, files))
}

func TestDiscover_DirectoryExclusionIsExactSegment(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Intermediate/A.h", "x")
	writeFile(t, root, "IntermediateTools/B.h", "x")
	writeFile(t, root, "Source/Intermediate/C.h", "x")

	files, err := Discover([]Root{{Path: root}}, DiscoveryOptions{ExcludeDirs: []string{"Intermediate"}}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"IntermediateTools/B.h"}, relPaths(t, root, files))
}

func TestDiscover_GlobsExcludeWins(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Weapon.h", "x")
	writeFile(t, root, "WeaponTest.h", "x")
	writeFile(t, root, "Pickup.h", "x")
	writeFile(t, root, "Weapon.txt", "x")

	opts := DiscoveryOptions{
		Include: []string{"Weapon*"},
		Exclude: []string{"*Test.h"},
	}
	files, err := Discover([]Root{{Path: root}}, opts, discardLogger())
	require.NoError(t, err)
	// Weapon.txt passes the globs but not the extension allow-list
	assert.Equal(t, []string{"Weapon.h"}, relPaths(t, root, files))
}

func TestDiscover_ExtensionsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Upper.H", "x")
	writeFile(t, root, "Script.py", "x")

	files, err := Discover([]Root{{Path: root}}, DiscoveryOptions{Extensions: []string{"h"}}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"Upper.H"}, relPaths(t, root, files))
}

func TestDiscover_MultipleRootsDeduplicated(t *testing.T) {
	base := t.TempDir()
	writeFile(t, base, "Engine/Core/Object.h", "x")
	writeFile(t, base, "Game/Weapon.h", "x")

	roots := []Root{
		{Path: filepath.Join(base, "Engine"), Origin: types.OriginEngine},
		{Path: filepath.Join(base, "Game"), Origin: types.OriginProject},
		{Path: base, Origin: types.OriginProject}, // overlaps both
		{Path: filepath.Join(base, "Missing"), Origin: types.OriginEngine},
	}
	files, err := Discover(roots, DiscoveryOptions{}, discardLogger())
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "Engine/Core/Object.h", filepath.ToSlash(must(filepath.Rel(base, files[0].Path))))
	assert.Equal(t, types.OriginEngine, files[0].Origin, "first root to reach a file labels it")
	assert.Equal(t, types.OriginProject, files[1].Origin)
}

func TestDiscover_Errors(t *testing.T) {
	_, err := Discover([]Root{{Path: filepath.Join(t.TempDir(), "nope")}}, DiscoveryOptions{}, discardLogger())
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = Discover([]Root{{Path: t.TempDir()}}, DiscoveryOptions{Include: []string{"[unclosed"}}, discardLogger())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoFiles)
}

func TestFileFilter_InExcludedDir(t *testing.T) {
	f := newFileFilter(DiscoveryOptions{})
	assert.True(t, f.inExcludedDir("Intermediate/Build/A.h"))
	assert.True(t, f.inExcludedDir("Source/.git/A.h"))
	assert.False(t, f.inExcludedDir("Source/Game/A.h"))
	assert.False(t, f.inExcludedDir("A.h"))
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
