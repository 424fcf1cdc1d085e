package query

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tagd-dev/tagd/internal/project"
)

const (
	cacheSize = 256
	cacheTTL  = 5 * time.Second
)

// cacheEntry is one memoized query result: the rendered output plus the
// execution status.
type cacheEntry struct {
	output    []byte
	status    int
	expiresAt time.Time
}

// Engine runs queries against one project with a small result cache.
// Merges invalidate the cache wholesale; entries also age out on a TTL.
type Engine struct {
	proj  *project.Project
	cache *lru.Cache[[32]byte, *cacheEntry]
}

// NewEngine creates an Engine for proj.
func NewEngine(proj *project.Project) *Engine {
	cache, err := lru.New[[32]byte, *cacheEntry](cacheSize)
	if err != nil {
		// Only possible with a non-positive size.
		panic(err)
	}
	return &Engine{proj: proj, cache: cache}
}

// ListSymbols executes q, writing output to w and returning the execution
// status (0 = results found, 1 = empty).
func (e *Engine) ListSymbols(q Query, w io.Writer) int {
	key := hashQuery(&q)
	if entry, ok := e.cache.Get(key); ok && time.Now().Before(entry.expiresAt) {
		_, _ = w.Write(entry.output)
		return entry.status
	}

	var buf bytes.Buffer
	status := NewListSymbols(q, e.proj).Execute(&buf)
	e.cache.Add(key, &cacheEntry{
		output:    buf.Bytes(),
		status:    status,
		expiresAt: time.Now().Add(cacheTTL),
	})
	_, _ = w.Write(buf.Bytes())
	return status
}

// Invalidate drops every cached result. Called after a merge changes the
// symbol store.
func (e *Engine) Invalidate() {
	e.cache.Purge()
}

// hashQuery derives a stable cache key from every field that affects the
// result.
func hashQuery(q *Query) [32]byte {
	h := sha256.New()
	_, _ = io.WriteString(h, q.Pattern)
	var flags [4]byte
	binary.LittleEndian.PutUint32(flags[:], uint32(q.Flags))
	_, _ = h.Write(flags[:])
	for _, f := range q.PathFilters {
		_, _ = io.WriteString(h, f.Pattern)
		_, _ = h.Write([]byte{byte(f.Mode)})
	}
	kinds := make([]string, 0, len(q.KindFilter))
	for kind := range q.KindFilter {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		_, _ = io.WriteString(h, kind)
		_, _ = h.Write([]byte{0})
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
