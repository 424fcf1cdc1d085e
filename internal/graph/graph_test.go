package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddBatchReportsNewFiles(t *testing.T) {
	g := New()
	newFiles := g.AddBatch(map[uint32][]uint32{1: {2, 3}})
	assert.ElementsMatch(t, []uint32{1, 2, 3}, newFiles)

	// Re-adding known edges reports nothing new.
	newFiles = g.AddBatch(map[uint32][]uint32{1: {2}})
	assert.Empty(t, newFiles)

	newFiles = g.AddBatch(map[uint32][]uint32{2: {4}})
	assert.ElementsMatch(t, []uint32{4}, newFiles)
	assert.Equal(t, 4, g.Len())
}

func TestDependenciesBothDirections(t *testing.T) {
	// 1 includes 2, 2 includes 3.
	g := New()
	g.AddBatch(map[uint32][]uint32{1: {2}, 2: {3}})

	keys := func(m map[uint32]struct{}) []uint32 {
		out := make([]uint32, 0, len(m))
		for k := range m {
			out = append(out, k)
		}
		return out
	}

	assert.ElementsMatch(t, []uint32{1, 2, 3}, keys(g.Dependencies(1, DependsOnArg)))
	assert.ElementsMatch(t, []uint32{1}, keys(g.Dependencies(1, ArgDependsOn)))
	assert.ElementsMatch(t, []uint32{3}, keys(g.Dependencies(3, DependsOnArg)))
	assert.ElementsMatch(t, []uint32{1, 2, 3}, keys(g.Dependencies(3, ArgDependsOn)))
	assert.Empty(t, keys(g.Dependencies(99, DependsOnArg)))
}

func TestDependenciesTerminatesOnCycle(t *testing.T) {
	g := New()
	g.AddBatch(map[uint32][]uint32{1: {2}, 2: {3}, 3: {1}})

	deps := g.Dependencies(1, DependsOnArg)
	assert.Len(t, deps, 3)
}

func TestWalkIncludesExcludesStart(t *testing.T) {
	g := New()
	g.AddBatch(map[uint32][]uint32{1: {2}, 2: {3}})

	var visited []uint32
	hit := g.WalkIncludes(1, func(n *Node) bool {
		visited = append(visited, n.FileID)
		return false
	})
	assert.False(t, hit)
	assert.ElementsMatch(t, []uint32{2, 3}, visited)
	assert.NotContains(t, visited, uint32(1))
}

func TestWalkIncludesShortCircuits(t *testing.T) {
	g := New()
	g.AddBatch(map[uint32][]uint32{1: {2}, 2: {3}, 3: {4}})

	calls := 0
	hit := g.WalkIncludes(1, func(n *Node) bool {
		calls++
		return n.FileID == 2
	})
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
}

func TestWalkIncludesCycle(t *testing.T) {
	g := New()
	g.AddBatch(map[uint32][]uint32{1: {2}, 2: {1}})

	calls := 0
	hit := g.WalkIncludes(1, func(n *Node) bool {
		calls++
		return false
	})
	assert.False(t, hit)
	assert.Equal(t, 1, calls) // only node 2; the start never re-enters
}

func TestWalkIncludesUnknownStart(t *testing.T) {
	g := New()
	assert.False(t, g.WalkIncludes(1, func(*Node) bool { return true }))
}

func TestRemove(t *testing.T) {
	g := New()
	g.AddBatch(map[uint32][]uint32{1: {2}, 2: {3}})

	g.Remove(2)
	assert.False(t, g.Contains(2))
	require.NotNil(t, g.Node(1))
	assert.Empty(t, g.Node(1).Includes)
	assert.Empty(t, g.Node(3).IncludedBy)

	// Removing an absent node is a no-op.
	g.Remove(99)
	assert.Equal(t, 2, g.Len())
}

func TestEdgesSnapshot(t *testing.T) {
	g := New()
	in := map[uint32][]uint32{1: {2, 3}, 2: {3}}
	g.AddBatch(in)

	edges := g.Edges()
	assert.ElementsMatch(t, []uint32{2, 3}, edges[1])
	assert.ElementsMatch(t, []uint32{3}, edges[2])
	// Leaf nodes carry no entry.
	_, ok := edges[3]
	assert.False(t, ok)
}
