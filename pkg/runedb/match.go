// Pattern matching against the graph engine. A path pattern matches
// by anchoring candidates for its first node, then extending edge by
// edge through each node's incident edges, honoring edge direction,
// type, and property constraints at every step.
package runedb

import (
	"errors"
	"fmt"
	"sort"

	"github.com/orneryd/runedb/pkg/graph"
	"github.com/orneryd/runedb/pkg/runeql"
)

// matchPattern returns every binding of the pattern's variables
// consistent with the seed row. Variables already bound in the seed
// constrain the match instead of rebinding.
func (e *executor) matchPattern(seed binding, pattern *runeql.PathPattern) ([]binding, error) {
	elements := pattern.Elements()
	if len(elements) == 0 {
		return nil, nil
	}

	first, ok := elements[0].(*runeql.NodePattern)
	if !ok {
		return nil, fmt.Errorf("path pattern %s must start with a node", pattern)
	}

	candidates, err := e.nodeCandidates(seed, first)
	if err != nil {
		return nil, err
	}

	var matches []binding
	for _, node := range candidates {
		b := seed.clone()
		if first.Variable != "" {
			b[first.Variable] = node
		}
		if err := e.extendPath(b, elements, 1, node, &matches); err != nil {
			return nil, err
		}
	}
	return matches, nil
}

// extendPath recursively matches elements[idx:] starting from current.
// idx always points at an edge pattern (or past the end).
func (e *executor) extendPath(b binding, elements []runeql.PathElement, idx int, current *graph.Node, matches *[]binding) error {
	if idx >= len(elements) {
		*matches = append(*matches, b.clone())
		return nil
	}

	edgePattern := elements[idx].(*runeql.EdgePattern)
	nodePattern := elements[idx+1].(*runeql.NodePattern)

	incident, err := e.engine.IncidentEdges(current.ID)
	if err != nil {
		return err
	}

	for _, edge := range incident {
		other, ok := traversableEndpoint(edge, current.ID, edgePattern.Direction)
		if !ok {
			continue
		}
		if !edgeMatches(edge, edgePattern) {
			continue
		}
		if bound, exists := b[edgePattern.Variable]; edgePattern.Variable != "" && exists {
			boundEdge, isEdge := bound.(*graph.Edge)
			if !isEdge || boundEdge == nil || boundEdge.ID != edge.ID {
				continue
			}
		}

		node, err := e.engine.GetNode(other)
		if errors.Is(err, graph.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if !nodeMatches(node, nodePattern) {
			continue
		}
		if bound, exists := b[nodePattern.Variable]; nodePattern.Variable != "" && exists {
			boundNode, isNode := bound.(*graph.Node)
			if !isNode || boundNode == nil || boundNode.ID != node.ID {
				continue
			}
		}

		next := b.clone()
		if edgePattern.Variable != "" {
			next[edgePattern.Variable] = edge
		}
		if nodePattern.Variable != "" {
			next[nodePattern.Variable] = node
		}
		if err := e.extendPath(next, elements, idx+2, node, matches); err != nil {
			return err
		}
	}
	return nil
}

// traversableEndpoint reports whether the edge can be walked from
// `from` under the pattern direction and returns the far endpoint.
func traversableEndpoint(edge *graph.Edge, from graph.NodeID, dir runeql.Direction) (graph.NodeID, bool) {
	switch dir {
	case runeql.DirectionOutgoing:
		if edge.Source == from {
			return edge.Target, true
		}
	case runeql.DirectionIncoming:
		if edge.Target == from {
			return edge.Source, true
		}
	default:
		if edge.Source == from {
			return edge.Target, true
		}
		if edge.Target == from {
			return edge.Source, true
		}
	}
	return "", false
}

// nodeCandidates lists the nodes that could anchor the pattern. A
// bound variable fixes the candidate to the bound node; otherwise the
// first label narrows the scan via the label index. Candidates come
// back sorted by ID so results are deterministic.
func (e *executor) nodeCandidates(seed binding, np *runeql.NodePattern) ([]*graph.Node, error) {
	if np.Variable != "" {
		if bound, exists := seed[np.Variable]; exists {
			node, isNode := bound.(*graph.Node)
			if !isNode || node == nil {
				return nil, nil
			}
			if !nodeMatches(node, np) {
				return nil, nil
			}
			return []*graph.Node{node}, nil
		}
	}

	var nodes []*graph.Node
	var err error
	if len(np.Labels) > 0 {
		nodes, err = e.engine.FindNodesByLabel(np.Labels[0])
	} else {
		nodes, err = e.engine.AllNodes()
	}
	if err != nil {
		return nil, err
	}

	candidates := nodes[:0]
	for _, node := range nodes {
		if nodeMatches(node, np) {
			candidates = append(candidates, node)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates, nil
}

// nodeMatches checks labels and property constraints.
func nodeMatches(node *graph.Node, np *runeql.NodePattern) bool {
	for _, label := range np.Labels {
		if !node.HasLabel(label) {
			return false
		}
	}
	for _, prop := range np.Properties {
		v, ok := node.Property(prop.Key)
		if !ok || !graph.ValuesEqual(v, prop.Value.Native()) {
			return false
		}
	}
	return true
}

// edgeMatches checks type and property constraints. Direction is
// handled by traversableEndpoint.
func edgeMatches(edge *graph.Edge, ep *runeql.EdgePattern) bool {
	if ep.Type != "" && edge.Type != ep.Type {
		return false
	}
	for _, prop := range ep.Properties {
		v, ok := edge.Properties[prop.Key]
		if !ok || !graph.ValuesEqual(v, prop.Value.Native()) {
			return false
		}
	}
	return true
}
