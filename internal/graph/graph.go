package graph

import "sync"

// Node is one file in the include graph.
type Node struct {
	FileID     uint32
	Includes   map[uint32]*Node
	IncludedBy map[uint32]*Node
}

// DependencyMode selects the direction of a transitive closure.
type DependencyMode int

const (
	// DependsOnArg walks Includes: everything the file pulls in.
	DependsOnArg DependencyMode = iota
	// ArgDependsOn walks IncludedBy: everything that pulls the file in.
	ArgDependsOn
)

// Graph is the project-wide include graph. All mutation happens under the
// write lock; a merge applies its whole edge batch in one critical section
// so readers never observe a partially merged graph.
type Graph struct {
	mu    sync.RWMutex
	nodes map[uint32]*Node
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[uint32]*Node)}
}

// Node returns the node for fileID, or nil.
func (g *Graph) Node(fileID uint32) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[fileID]
}

// Contains reports whether fileID has a node.
func (g *Graph) Contains(fileID uint32) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[fileID]
	return ok
}

// Len returns the node count.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func (g *Graph) node(fileID uint32) *Node {
	n, ok := g.nodes[fileID]
	if !ok {
		n = &Node{
			FileID:     fileID,
			Includes:   make(map[uint32]*Node),
			IncludedBy: make(map[uint32]*Node),
		}
		g.nodes[fileID] = n
	}
	return n
}

// AddBatch merges one job's include edges. deps maps an including file to
// the set of files it includes. The whole batch is applied atomically, and
// newFiles receives every file id not previously present in the graph.
func (g *Graph) AddBatch(deps map[uint32][]uint32) (newFiles []uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for from, tos := range deps {
		if _, ok := g.nodes[from]; !ok {
			newFiles = append(newFiles, from)
		}
		fromNode := g.node(from)
		for _, to := range tos {
			if _, ok := g.nodes[to]; !ok {
				newFiles = append(newFiles, to)
			}
			toNode := g.node(to)
			fromNode.Includes[to] = toNode
			toNode.IncludedBy[from] = fromNode
		}
	}
	return newFiles
}

// Remove deletes fileID's node and every edge touching it.
func (g *Graph) Remove(fileID uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[fileID]
	if !ok {
		return
	}
	for _, inc := range n.Includes {
		delete(inc.IncludedBy, fileID)
	}
	for _, dep := range n.IncludedBy {
		delete(dep.Includes, fileID)
	}
	delete(g.nodes, fileID)
}

// Dependencies returns the transitive closure of fileID in the given
// direction, including fileID itself. Traversal uses an explicit worklist
// with a visited set so include cycles terminate.
func (g *Graph) Dependencies(fileID uint32, mode DependencyMode) map[uint32]struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[uint32]struct{})
	start, ok := g.nodes[fileID]
	if !ok {
		return out
	}
	stack := []*Node{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := out[n.FileID]; seen {
			continue
		}
		out[n.FileID] = struct{}{}
		edges := n.Includes
		if mode == ArgDependsOn {
			edges = n.IncludedBy
		}
		for _, next := range edges {
			if _, seen := out[next.FileID]; !seen {
				stack = append(stack, next)
			}
		}
	}
	return out
}

// WalkIncludes runs visit over the include closure reachable from fileID,
// excluding fileID itself, stopping early when visit returns true. The
// traversal holds the read lock, so visit must not call back into the
// graph.
func (g *Graph) WalkIncludes(fileID uint32, visit func(n *Node) bool) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	start, ok := g.nodes[fileID]
	if !ok {
		return false
	}
	seen := map[uint32]struct{}{fileID: {}}
	stack := make([]*Node, 0, len(start.Includes))
	for _, inc := range start.Includes {
		stack = append(stack, inc)
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[n.FileID]; ok {
			continue
		}
		seen[n.FileID] = struct{}{}
		if visit(n) {
			return true
		}
		for _, next := range n.Includes {
			if _, ok := seen[next.FileID]; !ok {
				stack = append(stack, next)
			}
		}
	}
	return false
}

// Edges returns a snapshot of every include edge, keyed by including file.
// Used when persisting the graph.
func (g *Graph) Edges() map[uint32][]uint32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[uint32][]uint32, len(g.nodes))
	for id, n := range g.nodes {
		if len(n.Includes) == 0 {
			continue
		}
		tos := make([]uint32, 0, len(n.Includes))
		for to := range n.Includes {
			tos = append(tos, to)
		}
		out[id] = tos
	}
	return out
}
