//go:build !sqlite_cgo

package storage

// Compiled by default: pure Go SQLite, no C compiler required.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
