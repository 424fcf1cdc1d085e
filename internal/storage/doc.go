// Package storage persists project-level state across daemon restarts: the
// file table, the source map and the dependency edges. It is the durable
// side of the in-memory Project; the per-file symbol maps live in the
// filemap store instead.
//
// Two SQLite drivers are supported via build tags: the default pure-Go
// modernc.org/sqlite, and mattn/go-sqlite3 with -tags sqlite_cgo.
package storage
