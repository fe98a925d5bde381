package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// SQLiteCatalog implements the Catalog interface using SQLite
type SQLiteCatalog struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// OpenCatalog opens (or creates) the catalog database at dbPath and
// applies pending migrations.
func OpenCatalog(ctx context.Context, dbPath string) (*SQLiteCatalog, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteCatalog) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, catalog: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	catalog *SQLiteCatalog
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) RecordBuild(ctx context.Context, build *BuildRecord) error {
	return t.catalog.recordBuildWithQuerier(ctx, t.tx, build)
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *FileRecord) error {
	return t.catalog.upsertFileWithQuerier(ctx, t.tx, file)
}

func (t *sqliteTx) ReplaceDeclarations(ctx context.Context, fileID int64, decls []types.Declaration) error {
	return t.catalog.replaceDeclarationsWithQuerier(ctx, t.tx, fileID, decls)
}

// Build operations

func (s *SQLiteCatalog) recordBuildWithQuerier(ctx context.Context, q querier, build *BuildRecord) error {
	if build.BuildID == "" {
		return fmt.Errorf("build id is required")
	}
	if build.BuiltAt.IsZero() {
		build.BuiltAt = time.Now().UTC()
	}
	query := `
		INSERT INTO builds (build_id, provider, model, dimension, chunk_size, overlap,
		                    file_count, chunk_count, built_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(build_id) DO UPDATE SET
			file_count = excluded.file_count,
			chunk_count = excluded.chunk_count,
			built_at = excluded.built_at
	`
	_, err := q.ExecContext(ctx, query,
		build.BuildID, build.Provider, build.Model, build.Dimension,
		build.ChunkSize, build.Overlap, build.FileCount, build.ChunkCount, build.BuiltAt)
	if err != nil {
		return fmt.Errorf("failed to record build: %w", err)
	}
	return nil
}

// RecordBuild stores the bookkeeping row for a build
func (s *SQLiteCatalog) RecordBuild(ctx context.Context, build *BuildRecord) error {
	return s.recordBuildWithQuerier(ctx, s.db, build)
}

// LatestBuild returns the most recently recorded build
func (s *SQLiteCatalog) LatestBuild(ctx context.Context) (*BuildRecord, error) {
	query := `
		SELECT build_id, provider, model, dimension, chunk_size, overlap,
		       file_count, chunk_count, built_at
		FROM builds
		ORDER BY built_at DESC
		LIMIT 1
	`
	var b BuildRecord
	err := s.db.QueryRowContext(ctx, query).Scan(
		&b.BuildID, &b.Provider, &b.Model, &b.Dimension, &b.ChunkSize, &b.Overlap,
		&b.FileCount, &b.ChunkCount, &b.BuiltAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest build: %w", err)
	}
	return &b, nil
}

// File operations

func (s *SQLiteCatalog) upsertFileWithQuerier(ctx context.Context, q querier, file *FileRecord) error {
	if file.IndexedAt.IsZero() {
		file.IndexedAt = time.Now().UTC()
	}
	// Use atomic INSERT ... ON CONFLICT to keep file ids stable across upserts
	query := `
		INSERT INTO files (file_path, origin, content_hash, chunk_count, size_bytes, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			origin = excluded.origin,
			content_hash = excluded.content_hash,
			chunk_count = excluded.chunk_count,
			size_bytes = excluded.size_bytes,
			indexed_at = excluded.indexed_at
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		file.Path, string(file.Origin), file.ContentHash, file.ChunkCount,
		file.SizeBytes, file.IndexedAt).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file %s: %w", file.Path, err)
	}
	return nil
}

// UpsertFile inserts or updates a file row and sets file.ID
func (s *SQLiteCatalog) UpsertFile(ctx context.Context, file *FileRecord) error {
	return s.upsertFileWithQuerier(ctx, s.db, file)
}

// GetFile returns the file row for path
func (s *SQLiteCatalog) GetFile(ctx context.Context, path string) (*FileRecord, error) {
	query := `
		SELECT id, file_path, origin, content_hash, chunk_count, size_bytes, indexed_at
		FROM files
		WHERE file_path = ?
	`
	var f FileRecord
	var origin string
	err := s.db.QueryRowContext(ctx, query, path).Scan(
		&f.ID, &f.Path, &origin, &f.ContentHash, &f.ChunkCount, &f.SizeBytes, &f.IndexedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	f.Origin = types.Origin(origin)
	return &f, nil
}

// Declaration operations

func (s *SQLiteCatalog) replaceDeclarationsWithQuerier(ctx context.Context, q querier, fileID int64, decls []types.Declaration) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM entities WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("failed to clear declarations: %w", err)
	}

	// Overloads share (name, kind) within a file; the first line wins.
	query := `
		INSERT INTO entities (file_id, name, kind, line)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_id, name, kind) DO NOTHING
	`
	for _, d := range decls {
		if d.Name == "" {
			continue
		}
		if _, err := q.ExecContext(ctx, query, fileID, d.Name, string(d.Kind), d.Line); err != nil {
			return fmt.Errorf("failed to insert declaration %s: %w", d.Name, err)
		}
	}
	return nil
}

// ReplaceDeclarations swaps the declarations recorded for a file
func (s *SQLiteCatalog) ReplaceDeclarations(ctx context.Context, fileID int64, decls []types.Declaration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.replaceDeclarationsWithQuerier(ctx, tx, fileID, decls); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Lookup operations

const entitySelect = `
	SELECT e.name, e.kind, f.file_path, e.line, f.origin
	FROM entities e
	JOIN files f ON e.file_id = f.id
`

// LookupEntity returns every declaration with exactly this name
func (s *SQLiteCatalog) LookupEntity(ctx context.Context, name string) ([]EntityRecord, error) {
	return s.queryEntities(ctx, entitySelect+`
		WHERE e.name = ?
		ORDER BY f.file_path, e.line
	`, name)
}

// LookupEntityFold matches names case-insensitively
func (s *SQLiteCatalog) LookupEntityFold(ctx context.Context, name string) ([]EntityRecord, error) {
	return s.queryEntities(ctx, entitySelect+`
		WHERE e.name = ? COLLATE NOCASE
		ORDER BY f.file_path, e.line
	`, name)
}

// ListEntities lists declarations of one kind, or all kinds when kind is empty
func (s *SQLiteCatalog) ListEntities(ctx context.Context, kind types.EntityKind, limit int) ([]EntityRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	if kind == "" {
		return s.queryEntities(ctx, entitySelect+`
			ORDER BY e.name, f.file_path
			LIMIT ?
		`, limit)
	}
	return s.queryEntities(ctx, entitySelect+`
		WHERE e.kind = ?
		ORDER BY e.name, f.file_path
		LIMIT ?
	`, string(kind), limit)
}

func (s *SQLiteCatalog) queryEntities(ctx context.Context, query string, args ...any) ([]EntityRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []EntityRecord
	for rows.Next() {
		var r EntityRecord
		var kind, origin string
		if err := rows.Scan(&r.Name, &kind, &r.Path, &r.Line, &origin); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		r.Kind = types.EntityKind(kind)
		r.Origin = types.Origin(origin)
		out = append(out, r)
	}
	return out, rows.Err()
}

// EntityNames returns the distinct declared names in sorted order
func (s *SQLiteCatalog) EntityNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT name FROM entities ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list entity names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Stats summarizes the catalog
func (s *SQLiteCatalog) Stats(ctx context.Context) (*CatalogStats, error) {
	stats := &CatalogStats{ByKind: make(map[types.EntityKind]int)}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&stats.Files); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&stats.Entities); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM entities GROUP BY kind")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		stats.ByKind[types.EntityKind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)

	return stats, nil
}

var _ Catalog = (*SQLiteCatalog)(nil)
