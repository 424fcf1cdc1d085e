package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Location
		want int
	}{
		{"equal", Location{1, 2, 3}, Location{1, 2, 3}, 0},
		{"file wins", Location{1, 99, 99}, Location{2, 1, 1}, -1},
		{"line wins", Location{1, 2, 99}, Location{1, 3, 1}, -1},
		{"column last", Location{1, 2, 3}, Location{1, 2, 4}, -1},
		{"reversed", Location{2, 1, 1}, Location{1, 99, 99}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, tt.want < 0, tt.a.Less(tt.b))
		})
	}
}

func TestLocationKeyRoundTrip(t *testing.T) {
	loc := Location{FileID: 7, Line: 42, Column: 13}
	key := loc.Key()
	require.Len(t, key, 12)

	back, err := LocationFromKey(key)
	require.NoError(t, err)
	assert.Equal(t, loc, back)

	_, err = LocationFromKey(key[:8])
	assert.Error(t, err)
}

func TestLocationKeyOrderMatchesCompare(t *testing.T) {
	// Byte order of keys must equal logical order, that's what the sorted
	// persistent maps depend on.
	locations := []Location{
		{1, 1, 1},
		{1, 1, 2},
		{1, 2, 1},
		{2, 1, 1},
		{256, 1, 1},
	}
	for i := 1; i < len(locations); i++ {
		prev, cur := locations[i-1], locations[i]
		assert.True(t, prev.Less(cur))
		assert.Less(t, string(prev.Key()), string(cur.Key()))
	}
}

func TestSortLocations(t *testing.T) {
	locations := []Location{{2, 1, 1}, {1, 5, 1}, {1, 1, 9}, {1, 1, 2}}
	SortLocations(locations)
	assert.Equal(t, []Location{{1, 1, 2}, {1, 1, 9}, {1, 5, 1}, {2, 1, 1}}, locations)
}

func TestPathTableIntern(t *testing.T) {
	table := NewPathTable()
	assert.Equal(t, 0, table.Len())

	a := table.Intern("/src/a.cc")
	b := table.Intern("/src/b.cc")
	require.Equal(t, uint32(1), a)
	require.Equal(t, uint32(2), b)

	// Re-interning returns the existing id.
	assert.Equal(t, a, table.Intern("/src/a.cc"))
	assert.Equal(t, 2, table.Len())

	assert.Equal(t, "/src/a.cc", table.Path(a))
	assert.Equal(t, a, table.ID("/src/a.cc"))
	assert.Equal(t, uint32(0), table.ID("/src/unknown.cc"))
	assert.Equal(t, "", table.Path(0))
	assert.Equal(t, "", table.Path(99))
}

func TestPathTableRestore(t *testing.T) {
	table := NewPathTable()
	table.Restore(5, "/src/restored.cc")

	assert.Equal(t, "/src/restored.cc", table.Path(5))
	assert.Equal(t, uint32(5), table.ID("/src/restored.cc"))

	// New interns continue past the restored ids.
	next := table.Intern("/src/fresh.cc")
	assert.Equal(t, uint32(6), next)
}

func TestIsSystemPath(t *testing.T) {
	assert.True(t, IsSystemPath("/usr/include/stdio.h"))
	assert.True(t, IsSystemPath("/usr/local/include/boost/all.hpp"))
	assert.False(t, IsSystemPath("/home/dev/project/main.cc"))
	assert.False(t, IsSystemPath("/usr/src/app.c"))
}

func TestIsFunctionVariable(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"foo(int)::local", true},
		{"ns::Class::method(char *)::x", true},
		{"foo(int)::~weird", true},
		{"foo(int)", false},
		{"foo", false},
		{"foo(int)::", false},
		{"foo(int)::a b", false},
		{"foo(int)::a::b", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFunctionVariable(tt.name))
		})
	}
}

func TestSymbolIsNull(t *testing.T) {
	var sym Symbol
	assert.True(t, sym.IsNull())
	sym.SymbolName = "x"
	assert.False(t, sym.IsNull())
}

func TestBufferStateString(t *testing.T) {
	assert.Equal(t, "inactive", BufferInactive.String())
	assert.Equal(t, "open", BufferOpen.String())
	assert.Equal(t, "active", BufferActive.String())
}
