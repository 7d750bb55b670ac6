// Persistent graph engine backed by BadgerDB.
//
// Layout uses single-byte key prefixes:
//   - Nodes:          0x01 + nodeID -> JSON(Node)
//   - Edges:          0x02 + edgeID -> JSON(Edge)
//   - Label index:    0x03 + label + 0x00 + nodeID -> empty
//   - Outgoing index: 0x04 + nodeID + 0x00 + edgeID -> empty
//   - Incoming index: 0x05 + nodeID + 0x00 + edgeID -> empty
//
// Every mutating operation runs inside a single db.Update transaction,
// so the referential-integrity guarantees of the Engine interface hold
// across crashes: either the node, its indexes, and its cascaded edge
// deletions all commit, or none do.
package graph

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

const (
	prefixNode          = byte(0x01)
	prefixEdge          = byte(0x02)
	prefixLabelIndex    = byte(0x03)
	prefixOutgoingIndex = byte(0x04)
	prefixIncomingIndex = byte(0x05)
)

// BadgerEngine provides persistent graph storage using BadgerDB.
//
// Example:
//
//	engine, err := graph.NewBadgerEngine("./data/runedb")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
type BadgerEngine struct {
	db     *badger.DB
	mu     sync.RWMutex // protects closed
	closed bool
}

// BadgerOptions configures the BadgerDB engine.
type BadgerOptions struct {
	// DataDir is the directory for data files. Ignored when InMemory
	// is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode. Useful for tests;
	// data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write. Slower but durable.
	SyncWrites bool

	// Logger for BadgerDB internal logging. Nil silences it.
	Logger badger.Logger
}

// NewBadgerEngine opens a persistent engine at dataDir with default
// settings. The directory is created if it does not exist.
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{DataDir: dataDir})
}

// NewBadgerEngineInMemory creates an in-memory BadgerDB. Data is lost
// when the engine closes; useful for tests that want persistent-store
// semantics without disk I/O.
func NewBadgerEngineInMemory() (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{InMemory: true})
}

// NewBadgerEngineWithOptions opens a BadgerEngine with custom
// configuration.
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	// Modest buffer sizes; graph metadata is small compared to the
	// Badger defaults tuned for bulk KV workloads.
	badgerOpts = badgerOpts.
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	return &BadgerEngine{db: db}, nil
}

// ============================================================================
// Key encoding helpers
// ============================================================================

func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

func edgeKey(id EdgeID) []byte {
	return append([]byte{prefixEdge}, []byte(id)...)
}

// labelIndexKey: prefix + label + 0x00 + nodeID
func labelIndexKey(label string, nodeID NodeID) []byte {
	key := make([]byte, 0, 1+len(label)+1+len(nodeID))
	key = append(key, prefixLabelIndex)
	key = append(key, []byte(label)...)
	key = append(key, 0x00)
	key = append(key, []byte(nodeID)...)
	return key
}

func labelIndexPrefix(label string) []byte {
	key := make([]byte, 0, 1+len(label)+1)
	key = append(key, prefixLabelIndex)
	key = append(key, []byte(label)...)
	key = append(key, 0x00)
	return key
}

// adjacencyIndexKey: prefix + nodeID + 0x00 + edgeID
func adjacencyIndexKey(prefix byte, nodeID NodeID, edgeID EdgeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1+len(edgeID))
	key = append(key, prefix)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	key = append(key, []byte(edgeID)...)
	return key
}

func adjacencyIndexPrefix(prefix byte, nodeID NodeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1)
	key = append(key, prefix)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	return key
}

// extractEdgeIDFromIndexKey pulls the edgeID out of an adjacency index
// key (prefix + nodeID + 0x00 + edgeID).
func extractEdgeIDFromIndexKey(key []byte) EdgeID {
	for i := 1; i < len(key); i++ {
		if key[i] == 0x00 {
			return EdgeID(key[i+1:])
		}
	}
	return ""
}

// extractNodeIDFromLabelIndex pulls the nodeID out of a label index
// key (prefix + label + 0x00 + nodeID).
func extractNodeIDFromLabelIndex(key []byte, labelLen int) NodeID {
	offset := 1 + labelLen + 1
	if offset >= len(key) {
		return ""
	}
	return NodeID(key[offset:])
}

func encodeNode(n *Node) ([]byte, error) { return json.Marshal(n) }

func decodeNode(data []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func encodeEdge(e *Edge) ([]byte, error) { return json.Marshal(e) }

func decodeEdge(data []byte) (*Edge, error) {
	var e Edge
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (b *BadgerEngine) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}
	return nil
}

// ============================================================================
// Node operations
// ============================================================================

// AddNode stores a new node and its label index entries.
func (b *BadgerEngine) AddNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := nodeKey(node.ID)
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("node %s: %w", node.ID, ErrAlreadyExists)
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		data, err := encodeNode(node)
		if err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}

		for _, label := range node.Labels {
			if err := txn.Set(labelIndexKey(label, node.ID), []byte{}); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetNode retrieves a node by ID.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var node *Node
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		node, err = getNodeInTxn(txn, id)
		return err
	})
	return node, err
}

func getNodeInTxn(txn *badger.Txn, id NodeID) (*Node, error) {
	item, err := txn.Get(nodeKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var node *Node
	err = item.Value(func(val []byte) error {
		var decodeErr error
		node, decodeErr = decodeNode(val)
		return decodeErr
	})
	return node, err
}

// UpdateNode replaces an existing node, rebuilding its label index.
func (b *BadgerEngine) UpdateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		existing, err := getNodeInTxn(txn, node.ID)
		if err != nil {
			return err
		}

		for _, label := range existing.Labels {
			if err := txn.Delete(labelIndexKey(label, node.ID)); err != nil {
				return err
			}
		}

		data, err := encodeNode(node)
		if err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}
		if err := txn.Set(nodeKey(node.ID), data); err != nil {
			return err
		}

		for _, label := range node.Labels {
			if err := txn.Set(labelIndexKey(label, node.ID), []byte{}); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveNode removes a node, its index entries, and every incident
// edge in one transaction. Reports whether the node existed.
func (b *BadgerEngine) RemoveNode(id NodeID) (bool, error) {
	if id == "" {
		return false, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return false, err
	}

	existed := false
	err := b.db.Update(func(txn *badger.Txn) error {
		node, err := getNodeInTxn(txn, id)
		if err == ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		existed = true

		for _, label := range node.Labels {
			if err := txn.Delete(labelIndexKey(label, id)); err != nil {
				return err
			}
		}

		// Cascade: remove every incident edge before the node record.
		if err := b.deleteEdgesWithPrefix(txn, adjacencyIndexPrefix(prefixOutgoingIndex, id)); err != nil {
			return err
		}
		if err := b.deleteEdgesWithPrefix(txn, adjacencyIndexPrefix(prefixIncomingIndex, id)); err != nil {
			return err
		}

		return txn.Delete(nodeKey(id))
	})
	return existed, err
}

// deleteEdgesWithPrefix removes every edge referenced by adjacency
// index keys under the prefix.
func (b *BadgerEngine) deleteEdgesWithPrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var edgeIDs []EdgeID
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		edgeIDs = append(edgeIDs, extractEdgeIDFromIndexKey(it.Item().KeyCopy(nil)))
	}

	for _, edgeID := range edgeIDs {
		if err := b.deleteEdgeInTxn(txn, edgeID); err != nil && err != ErrNotFound {
			return err
		}
	}
	return nil
}

// ============================================================================
// Edge operations
// ============================================================================

// AddEdge stores a new edge after verifying both endpoints exist in
// the same transaction, so a concurrent node removal cannot race a
// dangling edge into the store.
func (b *BadgerEngine) AddEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := edgeKey(edge.ID)
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("edge %s: %w", edge.ID, ErrAlreadyExists)
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		if _, err := txn.Get(nodeKey(edge.Source)); err == badger.ErrKeyNotFound {
			return fmt.Errorf("source %s: %w", edge.Source, ErrMissingEndpoint)
		} else if err != nil {
			return err
		}
		if _, err := txn.Get(nodeKey(edge.Target)); err == badger.ErrKeyNotFound {
			return fmt.Errorf("target %s: %w", edge.Target, ErrMissingEndpoint)
		} else if err != nil {
			return err
		}

		data, err := encodeEdge(edge)
		if err != nil {
			return fmt.Errorf("failed to encode edge: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}

		if err := txn.Set(adjacencyIndexKey(prefixOutgoingIndex, edge.Source, edge.ID), []byte{}); err != nil {
			return err
		}
		return txn.Set(adjacencyIndexKey(prefixIncomingIndex, edge.Target, edge.ID), []byte{})
	})
}

// GetEdge retrieves an edge by ID.
func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edge *Edge
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		edge, err = getEdgeInTxn(txn, id)
		return err
	})
	return edge, err
}

func getEdgeInTxn(txn *badger.Txn, id EdgeID) (*Edge, error) {
	item, err := txn.Get(edgeKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var edge *Edge
	err = item.Value(func(val []byte) error {
		var decodeErr error
		edge, decodeErr = decodeEdge(val)
		return decodeErr
	})
	return edge, err
}

// RemoveEdge removes an edge and its adjacency index entries. Reports
// whether the edge existed.
func (b *BadgerEngine) RemoveEdge(id EdgeID) (bool, error) {
	if id == "" {
		return false, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return false, err
	}

	existed := false
	err := b.db.Update(func(txn *badger.Txn) error {
		err := b.deleteEdgeInTxn(txn, id)
		if err == ErrNotFound {
			return nil
		}
		if err == nil {
			existed = true
		}
		return err
	})
	return existed, err
}

func (b *BadgerEngine) deleteEdgeInTxn(txn *badger.Txn, id EdgeID) error {
	edge, err := getEdgeInTxn(txn, id)
	if err != nil {
		return err
	}

	if err := txn.Delete(adjacencyIndexKey(prefixOutgoingIndex, edge.Source, id)); err != nil {
		return err
	}
	if err := txn.Delete(adjacencyIndexKey(prefixIncomingIndex, edge.Target, id)); err != nil {
		return err
	}
	return txn.Delete(edgeKey(id))
}

// ============================================================================
// Traversal
// ============================================================================

// Neighbors lists nodes adjacent over any incident edge, in either
// direction.
func (b *BadgerEngine) Neighbors(id NodeID) ([]*Node, error) {
	edges, err := b.IncidentEdges(id)
	if err != nil {
		return nil, err
	}

	seen := make(map[NodeID]struct{})
	var neighbors []*Node
	err = b.db.View(func(txn *badger.Txn) error {
		for _, edge := range edges {
			otherID := edge.Other(id)
			if _, dup := seen[otherID]; dup {
				continue
			}
			seen[otherID] = struct{}{}
			other, err := getNodeInTxn(txn, otherID)
			if err == ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			neighbors = append(neighbors, other)
		}
		return nil
	})
	return neighbors, err
}

// IncidentEdges lists every edge touching the node as source or
// target.
func (b *BadgerEngine) IncidentEdges(id NodeID) ([]*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edges []*Edge
	err := b.db.View(func(txn *badger.Txn) error {
		if _, err := getNodeInTxn(txn, id); err != nil {
			return err
		}

		seen := make(map[EdgeID]struct{})
		for _, prefix := range [][]byte{
			adjacencyIndexPrefix(prefixOutgoingIndex, id),
			adjacencyIndexPrefix(prefixIncomingIndex, id),
		} {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			var edgeIDs []EdgeID
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				edgeIDs = append(edgeIDs, extractEdgeIDFromIndexKey(it.Item().KeyCopy(nil)))
			}
			it.Close()

			for _, edgeID := range edgeIDs {
				if _, dup := seen[edgeID]; dup {
					continue
				}
				seen[edgeID] = struct{}{}
				edge, err := getEdgeInTxn(txn, edgeID)
				if err == ErrNotFound {
					continue
				}
				if err != nil {
					return err
				}
				edges = append(edges, edge)
			}
		}
		return nil
	})
	return edges, err
}

// ============================================================================
// Scans
// ============================================================================

// FindNodesByLabel returns every node carrying the label, via the
// label index.
func (b *BadgerEngine) FindNodesByLabel(label string) ([]*Node, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var nodes []*Node
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := labelIndexPrefix(label)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var ids []NodeID
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, extractNodeIDFromLabelIndex(it.Item().KeyCopy(nil), len(label)))
		}
		it.Close()

		for _, id := range ids {
			node, err := getNodeInTxn(txn, id)
			if err == ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			nodes = append(nodes, node)
		}
		return nil
	})
	return nodes, err
}

// FindNodesByProperty returns every node whose property key equals the
// given value. Full scan over the node keyspace.
func (b *BadgerEngine) FindNodesByProperty(key string, value any) ([]*Node, error) {
	all, err := b.AllNodes()
	if err != nil {
		return nil, err
	}

	var nodes []*Node
	for _, node := range all {
		if v, ok := node.Properties[key]; ok && ValuesEqual(v, value) {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

// AllNodes returns every stored node.
func (b *BadgerEngine) AllNodes() ([]*Node, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var nodes []*Node
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixNode}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				node, err := decodeNode(val)
				if err != nil {
					return err
				}
				nodes = append(nodes, node)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return nodes, err
}

// AllEdges returns every stored edge.
func (b *BadgerEngine) AllEdges() ([]*Edge, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edges []*Edge
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixEdge}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				edge, err := decodeEdge(val)
				if err != nil {
					return err
				}
				edges = append(edges, edge)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return edges, err
}

// NodeCount returns the number of stored nodes.
func (b *BadgerEngine) NodeCount() (int64, error) {
	return b.countPrefix([]byte{prefixNode})
}

// EdgeCount returns the number of stored edges.
func (b *BadgerEngine) EdgeCount() (int64, error) {
	return b.countPrefix([]byte{prefixEdge})
}

func (b *BadgerEngine) countPrefix(prefix []byte) (int64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}

	var count int64
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close flushes and closes the underlying BadgerDB. Further operations
// fail with ErrStorageClosed.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}
