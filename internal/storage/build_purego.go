//go:build !sqlite_cgo

package storage

// Default build: pure Go SQLite via modernc.org/sqlite, no C compiler needed.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
