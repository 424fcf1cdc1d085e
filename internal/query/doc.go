// Package query implements the read-only lookup side of the daemon: the
// list-symbols job with its wildcard matching, kind and path filters,
// signature stripping and output modes, layered over the project's
// persistent symbol maps. Results are memoized in a small LRU cache keyed
// by the query hash.
package query
