// Package traversal implements graph walks over a graph.Engine:
// breadth-first and depth-first traversal with depth bounds, and
// unweighted shortest paths.
//
// Traversals follow edges in both directions, matching the engine's
// Neighbors semantics. They read through the Engine interface only,
// so they work identically over the memory and badger stores.
package traversal

import (
	"errors"

	"github.com/orneryd/runedb/pkg/graph"
)

// ErrNoPath is returned by ShortestPath when the target is not
// reachable from the start node.
var ErrNoPath = errors.New("no path between nodes")

// Visit is called for each node reached by a traversal, with the
// node's depth from the start. Returning false stops the traversal
// early.
type Visit func(node *graph.Node, depth int) bool

// Options bound a traversal.
type Options struct {
	// MaxDepth limits how far from the start the walk goes. 0 visits
	// only the start node; negative means unbounded.
	MaxDepth int
}

// Unbounded traverses without a depth limit.
func Unbounded() Options { return Options{MaxDepth: -1} }

// BFS walks the graph breadth-first from start, visiting each
// reachable node once in nondecreasing depth order.
func BFS(engine graph.Engine, start graph.NodeID, opts Options, visit Visit) error {
	startNode, err := engine.GetNode(start)
	if err != nil {
		return err
	}

	type item struct {
		node  *graph.Node
		depth int
	}

	visited := map[graph.NodeID]struct{}{start: {}}
	queue := []item{{startNode, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if !visit(cur.node, cur.depth) {
			return nil
		}
		if opts.MaxDepth >= 0 && cur.depth >= opts.MaxDepth {
			continue
		}

		neighbors, err := engine.Neighbors(cur.node.ID)
		if err != nil {
			return err
		}
		for _, n := range neighbors {
			if _, seen := visited[n.ID]; seen {
				continue
			}
			visited[n.ID] = struct{}{}
			queue = append(queue, item{n, cur.depth + 1})
		}
	}
	return nil
}

// DFS walks the graph depth-first from start, visiting each reachable
// node once.
func DFS(engine graph.Engine, start graph.NodeID, opts Options, visit Visit) error {
	if _, err := engine.GetNode(start); err != nil {
		return err
	}
	visited := make(map[graph.NodeID]struct{})
	_, err := dfs(engine, start, 0, opts, visited, visit)
	return err
}

// dfs returns false when the visitor asked to stop.
func dfs(engine graph.Engine, id graph.NodeID, depth int, opts Options, visited map[graph.NodeID]struct{}, visit Visit) (bool, error) {
	if _, seen := visited[id]; seen {
		return true, nil
	}
	visited[id] = struct{}{}

	node, err := engine.GetNode(id)
	if err != nil {
		return false, err
	}
	if !visit(node, depth) {
		return false, nil
	}
	if opts.MaxDepth >= 0 && depth >= opts.MaxDepth {
		return true, nil
	}

	neighbors, err := engine.Neighbors(id)
	if err != nil {
		return false, err
	}
	for _, n := range neighbors {
		cont, err := dfs(engine, n.ID, depth+1, opts, visited, visit)
		if err != nil || !cont {
			return cont, err
		}
	}
	return true, nil
}

// ShortestPath returns the node IDs of an unweighted shortest path
// from start to target, inclusive of both endpoints. Fails with
// ErrNoPath when target is unreachable and graph.ErrNotFound when
// either endpoint is absent.
func ShortestPath(engine graph.Engine, start, target graph.NodeID) ([]graph.NodeID, error) {
	if _, err := engine.GetNode(start); err != nil {
		return nil, err
	}
	if _, err := engine.GetNode(target); err != nil {
		return nil, err
	}
	if start == target {
		return []graph.NodeID{start}, nil
	}

	parent := map[graph.NodeID]graph.NodeID{start: start}
	queue := []graph.NodeID{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		neighbors, err := engine.Neighbors(cur)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if _, seen := parent[n.ID]; seen {
				continue
			}
			parent[n.ID] = cur
			if n.ID == target {
				return assemblePath(parent, start, target), nil
			}
			queue = append(queue, n.ID)
		}
	}

	return nil, ErrNoPath
}

// assemblePath walks the parent links back from target to start and
// reverses the result.
func assemblePath(parent map[graph.NodeID]graph.NodeID, start, target graph.NodeID) []graph.NodeID {
	var path []graph.NodeID
	for cur := target; ; cur = parent[cur] {
		path = append(path, cur)
		if cur == start {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
