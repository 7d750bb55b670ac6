// Package graph provides the graph store interface and implementations
// for RuneDB.
//
// The store is a labeled property graph: nodes carry labels and a
// property map, edges are directed, typed, and always reference two
// nodes present in the same store. Referential integrity is the
// package's core invariant — an edge can never be observed referencing
// a missing endpoint, and removing a node removes every incident edge
// as a single logical step.
//
// Implementations:
//   - MemoryEngine: in-memory storage for tests and small datasets
//   - BadgerEngine: persistent disk storage backed by BadgerDB
//
// Example Usage:
//
//	engine := graph.NewMemoryEngine()
//	defer engine.Close()
//
//	alice := &graph.Node{
//		ID:     graph.NodeID("alice"),
//		Labels: []string{"Person"},
//		Properties: map[string]any{"name": "Alice", "age": 30},
//	}
//	if err := engine.AddNode(alice); err != nil {
//		log.Fatal(err)
//	}
//
//	edge := &graph.Edge{
//		ID:     graph.EdgeID("knows-1"),
//		Source: "alice",
//		Target: "bob",
//		Type:   "KNOWS",
//	}
//	if err := engine.AddEdge(edge); err != nil {
//		// fails with ErrMissingEndpoint until "bob" exists
//	}
package graph

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
)

// Common errors. Lookups report absence with ErrNotFound; callers
// branch with errors.Is rather than treating absence as fatal.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidData     = errors.New("invalid data")
	ErrMissingEndpoint = errors.New("invalid edge: source or target node not found")
	ErrStorageClosed   = errors.New("storage closed")
)

// NodeID is a strongly-typed unique identifier for graph nodes.
type NodeID string

// EdgeID is a strongly-typed unique identifier for graph edges.
type EdgeID string

// NewNodeID returns a fresh unique node identifier. Used when a node
// is created without an explicit ID.
func NewNodeID() NodeID { return NodeID(generateID("n")) }

// NewEdgeID returns a fresh unique edge identifier.
func NewEdgeID() EdgeID { return EdgeID(generateID("e")) }

func generateID(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}

// Node is a graph node: a unique ID, a set of labels, and a property
// map with dynamically-typed values.
type Node struct {
	ID         NodeID         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// HasLabel reports whether the node carries the given label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// AddLabel appends a label if not already present. Insertion order is
// preserved for display.
func (n *Node) AddLabel(label string) {
	if !n.HasLabel(label) {
		n.Labels = append(n.Labels, label)
	}
}

// SetProperty sets a property value, allocating the map on first use.
func (n *Node) SetProperty(key string, value any) {
	if n.Properties == nil {
		n.Properties = make(map[string]any)
	}
	n.Properties[key] = value
}

// Property returns a property value and whether it was present.
func (n *Node) Property(key string) (any, bool) {
	v, ok := n.Properties[key]
	return v, ok
}

// Edge is a directed, typed relationship between two nodes. Source and
// Target must reference nodes present in the same store at the moment
// the edge is added.
type Edge struct {
	ID         EdgeID         `json:"id"`
	Source     NodeID         `json:"source"`
	Target     NodeID         `json:"target"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// SetProperty sets a property value, allocating the map on first use.
func (e *Edge) SetProperty(key string, value any) {
	if e.Properties == nil {
		e.Properties = make(map[string]any)
	}
	e.Properties[key] = value
}

// Other returns the endpoint opposite to the given node ID.
func (e *Edge) Other(id NodeID) NodeID {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// Engine is the graph store interface.
//
// All implementations guarantee:
//   - AddNode/AddEdge fail with ErrAlreadyExists on duplicate IDs and
//     leave the store unchanged on failure (no partial insert)
//   - AddEdge fails with ErrMissingEndpoint when either endpoint is
//     absent
//   - RemoveNode cascades: every incident edge is removed atomically
//     with the node, with no observable intermediate state
//   - the adjacency index is never inconsistent with the edge set
//
// Find operations are linear scans; there is no index acceleration.
type Engine interface {
	// Node operations
	AddNode(node *Node) error
	GetNode(id NodeID) (*Node, error)
	UpdateNode(node *Node) error
	RemoveNode(id NodeID) (bool, error)

	// Edge operations
	AddEdge(edge *Edge) error
	GetEdge(id EdgeID) (*Edge, error)
	RemoveEdge(id EdgeID) (bool, error)

	// Traversal
	Neighbors(id NodeID) ([]*Node, error)
	IncidentEdges(id NodeID) ([]*Edge, error)

	// Scans
	FindNodesByLabel(label string) ([]*Node, error)
	FindNodesByProperty(key string, value any) ([]*Node, error)
	AllNodes() ([]*Node, error)
	AllEdges() ([]*Edge, error)

	// Stats
	NodeCount() (int64, error)
	EdgeCount() (int64, error)

	// Lifecycle
	Close() error
}
