// Package graph maintains the directed include graph between files. Nodes
// are kept in an arena indexed by file id; edges can form cycles (headers
// mutually including through guards), so every traversal carries a visited
// set.
package graph
