// In-memory graph engine for RuneDB.
//
// MemoryEngine keeps everything in maps guarded by a single RWMutex.
// It maintains three derived indexes: nodes by label, and outgoing and
// incoming edge sets per node. The incident-edge adjacency of a node
// is the union of its outgoing and incoming sets.
//
// Cascading removal: RemoveNode collects the incident edge IDs first,
// removes those edges, then removes the node record, all under the
// write lock, so no dangling edge is ever observable between
// operations.
package graph

import (
	"fmt"
	"sync"
)

// MemoryEngine is a thread-safe in-memory graph store.
//
// Performance characteristics:
//   - Node/edge lookup by ID: O(1)
//   - Neighbors/IncidentEdges: O(degree)
//   - FindNodesByLabel: O(k) where k = nodes with that label
//   - FindNodesByProperty: O(n) linear scan
//
// Returned nodes and edges are deep copies; mutating them does not
// affect stored state. Mutations go through the engine's operations.
type MemoryEngine struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge

	// Indexes for efficient lookups
	nodesByLabel map[string]map[NodeID]struct{}
	outgoing     map[NodeID]map[EdgeID]struct{}
	incoming     map[NodeID]map[EdgeID]struct{}

	closed bool
}

// NewMemoryEngine creates an empty in-memory graph store ready for
// immediate use.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		nodes:        make(map[NodeID]*Node),
		edges:        make(map[EdgeID]*Edge),
		nodesByLabel: make(map[string]map[NodeID]struct{}),
		outgoing:     make(map[NodeID]map[EdgeID]struct{}),
		incoming:     make(map[NodeID]map[EdgeID]struct{}),
	}
}

// AddNode stores a new node.
//
// Returns ErrAlreadyExists if a node with this ID is present; the
// store is unchanged on failure.
func (m *MemoryEngine) AddNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	if _, exists := m.nodes[node.ID]; exists {
		return fmt.Errorf("node %s: %w", node.ID, ErrAlreadyExists)
	}

	stored := copyNode(node)
	m.nodes[node.ID] = stored

	for _, label := range node.Labels {
		if m.nodesByLabel[label] == nil {
			m.nodesByLabel[label] = make(map[NodeID]struct{})
		}
		m.nodesByLabel[label][node.ID] = struct{}{}
	}

	return nil
}

// GetNode retrieves a node by ID. Absence is reported as ErrNotFound.
func (m *MemoryEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	node, exists := m.nodes[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyNode(node), nil
}

// UpdateNode replaces an existing node's labels and properties.
func (m *MemoryEngine) UpdateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	existing, exists := m.nodes[node.ID]
	if !exists {
		return ErrNotFound
	}

	for _, label := range existing.Labels {
		if m.nodesByLabel[label] != nil {
			delete(m.nodesByLabel[label], node.ID)
		}
	}

	m.nodes[node.ID] = copyNode(node)

	for _, label := range node.Labels {
		if m.nodesByLabel[label] == nil {
			m.nodesByLabel[label] = make(map[NodeID]struct{})
		}
		m.nodesByLabel[label][node.ID] = struct{}{}
	}

	return nil
}

// RemoveNode removes a node and every incident edge as one logical
// step. Reports whether the node existed.
func (m *MemoryEngine) RemoveNode(id NodeID) (bool, error) {
	if id == "" {
		return false, ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrStorageClosed
	}

	node, exists := m.nodes[id]
	if !exists {
		return false, nil
	}

	// Collect incident edges first, then remove them, then the node.
	incident := make(map[EdgeID]struct{})
	for edgeID := range m.outgoing[id] {
		incident[edgeID] = struct{}{}
	}
	for edgeID := range m.incoming[id] {
		incident[edgeID] = struct{}{}
	}
	for edgeID := range incident {
		m.removeEdgeLocked(edgeID)
	}

	for _, label := range node.Labels {
		if m.nodesByLabel[label] != nil {
			delete(m.nodesByLabel[label], id)
		}
	}
	delete(m.outgoing, id)
	delete(m.incoming, id)
	delete(m.nodes, id)

	return true, nil
}

// AddEdge stores a new edge.
//
// Fails with ErrMissingEndpoint if either endpoint node is absent and
// ErrAlreadyExists on a duplicate edge ID. A failed add leaves the
// edge set and adjacency index untouched.
func (m *MemoryEngine) AddEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	if _, exists := m.edges[edge.ID]; exists {
		return fmt.Errorf("edge %s: %w", edge.ID, ErrAlreadyExists)
	}
	if _, exists := m.nodes[edge.Source]; !exists {
		return fmt.Errorf("source %s: %w", edge.Source, ErrMissingEndpoint)
	}
	if _, exists := m.nodes[edge.Target]; !exists {
		return fmt.Errorf("target %s: %w", edge.Target, ErrMissingEndpoint)
	}

	m.edges[edge.ID] = copyEdge(edge)

	if m.outgoing[edge.Source] == nil {
		m.outgoing[edge.Source] = make(map[EdgeID]struct{})
	}
	m.outgoing[edge.Source][edge.ID] = struct{}{}

	if m.incoming[edge.Target] == nil {
		m.incoming[edge.Target] = make(map[EdgeID]struct{})
	}
	m.incoming[edge.Target][edge.ID] = struct{}{}

	return nil
}

// GetEdge retrieves an edge by ID. Absence is reported as ErrNotFound.
func (m *MemoryEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	edge, exists := m.edges[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyEdge(edge), nil
}

// RemoveEdge removes an edge and its adjacency entries. Reports
// whether the edge existed.
func (m *MemoryEngine) RemoveEdge(id EdgeID) (bool, error) {
	if id == "" {
		return false, ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrStorageClosed
	}

	if _, exists := m.edges[id]; !exists {
		return false, nil
	}
	m.removeEdgeLocked(id)
	return true, nil
}

// removeEdgeLocked removes an edge and purges both adjacency entries.
// Caller holds the write lock.
func (m *MemoryEngine) removeEdgeLocked(id EdgeID) {
	edge, exists := m.edges[id]
	if !exists {
		return
	}
	if out := m.outgoing[edge.Source]; out != nil {
		delete(out, id)
	}
	if in := m.incoming[edge.Target]; in != nil {
		delete(in, id)
	}
	delete(m.edges, id)
}

// Neighbors lists the nodes reachable over any incident edge, in
// either direction, by resolving the opposite endpoint of each edge.
func (m *MemoryEngine) Neighbors(id NodeID) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	if _, exists := m.nodes[id]; !exists {
		return nil, ErrNotFound
	}

	seen := make(map[NodeID]struct{})
	var neighbors []*Node
	for _, edge := range m.incidentLocked(id) {
		otherID := edge.Other(id)
		if _, dup := seen[otherID]; dup {
			continue
		}
		seen[otherID] = struct{}{}
		if other, ok := m.nodes[otherID]; ok {
			neighbors = append(neighbors, copyNode(other))
		}
	}
	return neighbors, nil
}

// IncidentEdges lists every edge touching the node as source or
// target.
func (m *MemoryEngine) IncidentEdges(id NodeID) ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	if _, exists := m.nodes[id]; !exists {
		return nil, ErrNotFound
	}

	incident := m.incidentLocked(id)
	out := make([]*Edge, len(incident))
	for i, e := range incident {
		out[i] = copyEdge(e)
	}
	return out, nil
}

// incidentLocked returns stored (uncopied) incident edges. Caller
// holds at least the read lock.
func (m *MemoryEngine) incidentLocked(id NodeID) []*Edge {
	seen := make(map[EdgeID]struct{})
	var edges []*Edge
	for edgeID := range m.outgoing[id] {
		if edge, ok := m.edges[edgeID]; ok {
			seen[edgeID] = struct{}{}
			edges = append(edges, edge)
		}
	}
	for edgeID := range m.incoming[id] {
		if _, dup := seen[edgeID]; dup {
			continue
		}
		if edge, ok := m.edges[edgeID]; ok {
			edges = append(edges, edge)
		}
	}
	return edges
}

// FindNodesByLabel returns every node carrying the label.
func (m *MemoryEngine) FindNodesByLabel(label string) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	var nodes []*Node
	for id := range m.nodesByLabel[label] {
		if node, ok := m.nodes[id]; ok {
			nodes = append(nodes, copyNode(node))
		}
	}
	return nodes, nil
}

// FindNodesByProperty returns every node whose property key equals the
// given value. Linear scan; numeric values compare across int/float.
func (m *MemoryEngine) FindNodesByProperty(key string, value any) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	var nodes []*Node
	for _, node := range m.nodes {
		if v, ok := node.Properties[key]; ok && ValuesEqual(v, value) {
			nodes = append(nodes, copyNode(node))
		}
	}
	return nodes, nil
}

// AllNodes returns a copy of every node.
func (m *MemoryEngine) AllNodes() ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	nodes := make([]*Node, 0, len(m.nodes))
	for _, node := range m.nodes {
		nodes = append(nodes, copyNode(node))
	}
	return nodes, nil
}

// AllEdges returns a copy of every edge.
func (m *MemoryEngine) AllEdges() ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	edges := make([]*Edge, 0, len(m.edges))
	for _, edge := range m.edges {
		edges = append(edges, copyEdge(edge))
	}
	return edges, nil
}

// NodeCount returns the number of stored nodes.
func (m *MemoryEngine) NodeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.nodes)), nil
}

// EdgeCount returns the number of stored edges.
func (m *MemoryEngine) EdgeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.edges)), nil
}

// Close marks the engine closed. Further operations fail with
// ErrStorageClosed.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ValuesEqual compares two property values with numeric coercion:
// int64(42) equals float64(42.0). Non-numeric values compare with ==
// when comparable.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if aok && bok {
		return af == bf
	}
	if aok != bok {
		return false
	}
	return a == b
}

// toFloat64 widens any numeric value to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func copyNode(n *Node) *Node {
	out := &Node{
		ID:     n.ID,
		Labels: append([]string(nil), n.Labels...),
	}
	if n.Properties != nil {
		out.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			out.Properties[k] = v
		}
	}
	return out
}

func copyEdge(e *Edge) *Edge {
	out := &Edge{
		ID:     e.ID,
		Source: e.Source,
		Target: e.Target,
		Type:   e.Type,
	}
	if e.Properties != nil {
		out.Properties = make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			out.Properties[k] = v
		}
	}
	return out
}
