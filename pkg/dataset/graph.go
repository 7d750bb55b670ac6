package dataset

import (
	"sort"

	"github.com/orneryd/runedb/pkg/graph"
	"github.com/orneryd/runedb/pkg/record"
)

// GraphDataset stores records as nodes in a graph engine. The record's
// "id" field becomes the node ID (generated when absent), a "labels"
// field becomes the node's labels, and everything else lands in the
// node's property map. Selecting flattens each node back into a record
// with the id and labels restored as fields.
type GraphDataset struct {
	name   string
	engine graph.Engine
}

// NewGraphDataset creates a graph dataset over a fresh in-memory
// engine.
func NewGraphDataset(name string) *GraphDataset {
	return NewGraphDatasetOn(name, graph.NewMemoryEngine())
}

// NewGraphDatasetOn creates a graph dataset over an existing engine,
// for callers that want the records to share storage with a graph
// they operate on directly.
func NewGraphDatasetOn(name string, engine graph.Engine) *GraphDataset {
	return &GraphDataset{name: name, engine: engine}
}

// Name returns the dataset's catalog name.
func (d *GraphDataset) Name() string { return d.name }

// Engine exposes the underlying graph engine.
func (d *GraphDataset) Engine() graph.Engine { return d.engine }

// Insert stores a record as a node. Re-inserting an existing id
// replaces the node's content, matching upsert semantics.
func (d *GraphDataset) Insert(rec record.Record) error {
	node := &graph.Node{Properties: make(map[string]any)}

	for k, v := range rec {
		switch k {
		case "id":
			if id, ok := v.(string); ok {
				node.ID = graph.NodeID(id)
				continue
			}
		case "labels":
			if labels := toStringSlice(v); labels != nil {
				node.Labels = labels
				continue
			}
		}
		node.Properties[k] = v
	}

	if node.ID == "" {
		node.ID = graph.NewNodeID()
	}

	err := d.engine.AddNode(node)
	if err == nil {
		return nil
	}
	if updateErr := d.engine.UpdateNode(node); updateErr == nil {
		return nil
	}
	return err
}

// Select materializes every node as a record and evaluates the query
// pipeline. Records enter the pipeline ordered by node ID so results
// are deterministic even without an order_by.
func (d *GraphDataset) Select(q *record.Query) ([]record.Record, error) {
	nodes, err := d.engine.AllNodes()
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	records := make([]record.Record, len(nodes))
	for i, node := range nodes {
		rec := make(record.Record, len(node.Properties)+2)
		for k, v := range node.Properties {
			rec[k] = v
		}
		rec["id"] = string(node.ID)
		if len(node.Labels) > 0 {
			rec["labels"] = append([]string(nil), node.Labels...)
		}
		records[i] = rec
	}

	return record.Apply(records, q), nil
}

func toStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...)
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil
			}
			out = append(out, str)
		}
		return out
	}
	return nil
}
