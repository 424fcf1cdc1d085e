// Package project orchestrates indexing for one project root: it owns the
// dependency graph, the active-job registry, the visited-file bookkeeping
// and the source map, batches dirty files through a debounce window, merges
// parser results into the persistent symbol maps, and persists a snapshot
// of its state through the storage package.
package project
