package types

import (
	"strings"
	"sync"
)

// PathTable maps file paths to stable uint32 ids and back. Ids are assigned
// sequentially starting at 1; id 0 means "no file". Safe for concurrent use.
type PathTable struct {
	mu  sync.RWMutex
	ids map[string]uint32
	rev []string // rev[0] unused so ids start at 1
}

// NewPathTable creates an empty PathTable.
func NewPathTable() *PathTable {
	return &PathTable{
		ids: make(map[string]uint32),
		rev: []string{""},
	}
}

// Intern returns the id for path, assigning a new one if the path has not
// been seen before.
func (t *PathTable) Intern(path string) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[path]; ok {
		return id
	}
	id := uint32(len(t.rev))
	t.rev = append(t.rev, path)
	t.ids[path] = id
	return id
}

// Restore force-installs an id→path mapping, growing the table as needed.
// Used when reloading a persisted project so file ids stay stable across
// restarts.
func (t *PathTable) Restore(id uint32, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for uint32(len(t.rev)) <= id {
		t.rev = append(t.rev, "")
	}
	t.rev[id] = path
	t.ids[path] = id
}

// ID returns the id for path, or 0 if the path was never interned.
func (t *PathTable) ID(path string) uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ids[path]
}

// Path returns the path for id, or "" if id is unknown.
func (t *PathTable) Path(id uint32) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id == 0 || int(id) >= len(t.rev) {
		return ""
	}
	return t.rev[id]
}

// Len returns the number of interned paths.
func (t *PathTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rev) - 1
}

var systemPrefixes = []string{
	"/usr/include/",
	"/usr/local/include/",
	"/usr/lib/",
	"/opt/local/include/",
	"/Applications/Xcode",
}

// IsSystemPath reports whether path points into a system header tree.
// System headers never contribute the include-proximity priority bump.
func IsSystemPath(path string) bool {
	for _, prefix := range systemPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
