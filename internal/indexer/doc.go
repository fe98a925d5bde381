// Package indexer builds the searchable index for one or more C++ source
// trees.
//
// # Basic Usage
//
//	idx := indexer.New(store, handle, logger)
//
//	stats, err := idx.Build(ctx, indexer.Config{
//	    Roots: []indexer.Root{
//	        {Path: "/UE5/Engine/Source", Origin: types.OriginEngine},
//	        {Path: "/MyGame/Source", Origin: types.OriginProject},
//	    },
//	    Incremental: true,
//	})
//
//	fmt.Printf("%d chunks, %d embedded, %d reused\n",
//	    stats.ChunksTotal, stats.ChunksCreated, stats.ChunksReused)
//
// # Pipeline
//
//  1. Discovery: walk every root; skip excluded directory names, apply the
//     include/exclude globs to file names (exclude wins) and the extension
//     allow-list. Output is deduplicated and sorted.
//  2. File stage (worker pool): read, hash (SHA-256), chunk, enrich, and
//     scan declarations for the entity catalog.
//  3. Embedding: chunks that cannot be reused go through one serialized
//     embedder.Handle in batches.
//  4. Persistence: vectors, metadata, hash cache and catalog are written to a
//     fresh build directory, then the store's CURRENT pointer is swapped.
//
// Cancellation is checked between files and once more before the swap; a
// cancelled build never replaces the live one.
//
// # Incremental Builds
//
// A file's vectors are copied from the live build when incremental mode is
// on, Force is off, its hash is in the previous hash cache, the cached chunk
// count equals the fresh count, and the live build's dimension matches the
// provider. The chunk count check catches chunking parameter changes.
//
// # Watch Mode
//
// Watcher subscribes to fsnotify events under the roots and runs an
// incremental build once the tree has been quiet for the debounce period.
package indexer
