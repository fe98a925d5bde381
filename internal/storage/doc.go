// Package storage persists index builds.
//
// A store root holds versioned build directories and a CURRENT pointer
// naming the live one:
//
//	<root>/CURRENT
//	<root>/builds/<uuid>/embeddings.vec   dense float32 matrix, one row per chunk
//	<root>/builds/<uuid>/metadata.json    chunk metadata aligned with the rows
//	<root>/builds/<uuid>/hash_cache.json  file hash -> {path, chunk_count}
//	<root>/builds/<uuid>/entities.db      SQLite entity catalog
//
// # Builds
//
// A rebuild never touches the live directory. It writes a new one and swaps
// CURRENT with a rename, so readers see either the old build or the new one:
//
//	w, err := st.BeginBuild()
//	if err != nil {
//	    return err
//	}
//	defer w.Abort()
//
//	catalog, err := storage.OpenCatalog(ctx, w.CatalogPath())
//	// ... record files and declarations ...
//	if err := w.Write(meta, vectors, hashes); err != nil {
//	    return err
//	}
//	return w.Commit()
//
// # Validation
//
// Load distinguishes a store that was never built (ErrMissing) from one that
// cannot be used (ErrInvalid): corrupt or empty files, row count mismatches,
// dimension mismatches and non-finite vectors. Both are reported as a
// *ValidationError carrying remediation text.
//
// # Catalog
//
// The entity catalog records every declaration found during a build so that
// definition lookups resolve names without rescanning sources. Migrations are
// versioned with semantic versions. The default driver is modernc.org/sqlite;
// build with -tags sqlite_cgo to use github.com/mattn/go-sqlite3 instead.
package storage
