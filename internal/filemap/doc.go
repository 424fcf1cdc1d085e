// Package filemap stores the per-file symbol maps (symnames, symbols,
// targets, usrs) in a Badger key-value store. Keys are laid out so that
// byte-wise iteration order equals the map's logical sort order: symbol
// names lexicographically, locations by (file, line, column). A file's maps
// are written wholesale when its indexing job completes and opened as
// immutable snapshots on the query side.
package filemap
