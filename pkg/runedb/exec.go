// Clause execution. An executor carries the working set of binding
// rows through the clause sequence: MATCH grows it, WHERE filters it,
// CREATE/SET/DELETE mutate the graph through it, RETURN projects it.
package runedb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/orneryd/runedb/pkg/graph"
	"github.com/orneryd/runedb/pkg/record"
	"github.com/orneryd/runedb/pkg/runeql"
)

// binding maps pattern variables to graph entities (*graph.Node or
// *graph.Edge). An OPTIONAL MATCH that found nothing binds its
// variables to nil.
type binding map[string]any

func (b binding) clone() binding {
	out := make(binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

type executor struct {
	engine graph.Engine
	rows   []binding
	result *Result

	// bound is set once a MATCH or CREATE has produced the working
	// rows. It distinguishes "no clause has bound rows yet" from "a
	// MATCH ran and found nothing".
	bound bool
}

func (e *executor) apply(clause runeql.Clause) error {
	switch c := clause.(type) {
	case *runeql.MatchClause:
		return e.applyMatch(c)
	case *runeql.CreateClause:
		return e.applyCreate(c)
	case *runeql.WhereClause:
		return e.applyWhere(c)
	case *runeql.SetClause:
		return e.applySet(c)
	case *runeql.DeleteClause:
		return e.applyDelete(c)
	case *runeql.ReturnClause:
		return e.applyReturn(c)
	}
	return fmt.Errorf("unsupported clause %T", clause)
}

// workingRows returns the current rows, seeding a single empty row so
// clauses without a preceding MATCH still execute once. Once a clause
// has bound rows an empty set stays empty: a MATCH that found nothing
// must not revive later clauses.
func (e *executor) workingRows() []binding {
	if !e.bound {
		return []binding{{}}
	}
	return e.rows
}

func (e *executor) applyMatch(c *runeql.MatchClause) error {
	var next []binding
	for _, row := range e.workingRows() {
		expanded := []binding{row}
		for _, pattern := range c.Patterns {
			var grown []binding
			for _, b := range expanded {
				matches, err := e.matchPattern(b, pattern)
				if err != nil {
					return err
				}
				grown = append(grown, matches...)
			}
			expanded = grown
		}

		if len(expanded) == 0 && c.Optional {
			// Keep the row; the pattern's variables read as nil.
			nilRow := row.clone()
			for _, pattern := range c.Patterns {
				for _, v := range patternVariables(pattern) {
					if _, bound := nilRow[v]; !bound {
						nilRow[v] = nil
					}
				}
			}
			expanded = []binding{nilRow}
		}

		next = append(next, expanded...)
	}
	e.rows = next
	e.bound = true
	return nil
}

func (e *executor) applyCreate(c *runeql.CreateClause) error {
	var next []binding
	for _, row := range e.workingRows() {
		b := row.clone()
		for _, pattern := range c.Patterns {
			if err := e.createPattern(b, pattern); err != nil {
				return err
			}
		}
		next = append(next, b)
	}
	e.rows = next
	e.bound = true
	return nil
}

// createPattern materializes one path: nodes first (reusing bound
// variables), then an edge between each adjacent pair.
func (e *executor) createPattern(b binding, pattern *runeql.PathPattern) error {
	elements := pattern.Elements()
	var prev *graph.Node

	for i := 0; i < len(elements); i++ {
		switch el := elements[i].(type) {
		case *runeql.NodePattern:
			node, err := e.resolveOrCreateNode(b, el)
			if err != nil {
				return err
			}
			if i > 0 {
				edgePattern := elements[i-1].(*runeql.EdgePattern)
				if err := e.createEdge(b, edgePattern, prev, node); err != nil {
					return err
				}
			}
			prev = node
		}
	}
	return nil
}

// resolveOrCreateNode reuses a bound node variable or creates a new
// node from the pattern.
func (e *executor) resolveOrCreateNode(b binding, np *runeql.NodePattern) (*graph.Node, error) {
	if np.Variable != "" {
		if bound, ok := b[np.Variable]; ok {
			node, isNode := bound.(*graph.Node)
			if !isNode || node == nil {
				return nil, fmt.Errorf("variable %q: %w", np.Variable, ErrUnboundVariable)
			}
			return node, nil
		}
	}

	node := &graph.Node{
		ID:     graph.NewNodeID(),
		Labels: append([]string(nil), np.Labels...),
	}
	for _, prop := range np.Properties {
		node.SetProperty(prop.Key, prop.Value.Native())
	}

	if err := e.engine.AddNode(node); err != nil {
		return nil, err
	}
	e.result.NodesCreated++

	if np.Variable != "" {
		b[np.Variable] = node
	}
	return node, nil
}

func (e *executor) createEdge(b binding, ep *runeql.EdgePattern, from, to *graph.Node) error {
	// An incoming arrow reverses the stored direction.
	source, target := from, to
	if ep.Direction == runeql.DirectionIncoming {
		source, target = to, from
	}

	edge := &graph.Edge{
		ID:     graph.NewEdgeID(),
		Source: source.ID,
		Target: target.ID,
		Type:   ep.Type,
	}
	for _, prop := range ep.Properties {
		edge.SetProperty(prop.Key, prop.Value.Native())
	}

	if err := e.engine.AddEdge(edge); err != nil {
		return err
	}
	e.result.EdgesCreated++

	if ep.Variable != "" {
		b[ep.Variable] = edge
	}
	return nil
}

func (e *executor) applyWhere(c *runeql.WhereClause) error {
	filter := &record.Filter{}
	for _, cond := range c.Conditions {
		filter.Conditions = append(filter.Conditions, record.Condition{
			Field: cond.Key,
			Op:    cond.Operator,
			Value: cond.Value.Native(),
		})
	}

	var kept []binding
	for _, row := range e.rows {
		if filter.Matches(flattenRow(row)) {
			kept = append(kept, row)
		}
	}
	e.rows = kept
	return nil
}

// flattenRow converts a binding row into an evaluable record: each
// bound node contributes "var.id" and "var.<prop>" fields, each bound
// edge additionally "var.type". Nil bindings contribute nothing, so
// their fields read as nil.
func flattenRow(row binding) record.Record {
	rec := make(record.Record)
	for variable, entity := range row {
		switch v := entity.(type) {
		case *graph.Node:
			if v == nil {
				continue
			}
			rec[variable+".id"] = string(v.ID)
			for k, val := range v.Properties {
				rec[variable+"."+k] = val
			}
		case *graph.Edge:
			if v == nil {
				continue
			}
			rec[variable+".id"] = string(v.ID)
			rec[variable+".type"] = v.Type
			for k, val := range v.Properties {
				rec[variable+"."+k] = val
			}
		}
	}
	return rec
}

func (e *executor) applySet(c *runeql.SetClause) error {
	for _, row := range e.rows {
		for _, assign := range c.Assignments {
			variable, field, found := strings.Cut(assign.Key, ".")
			if !found {
				return fmt.Errorf("SET target %q must be variable.property", assign.Key)
			}

			bound, ok := row[variable]
			if !ok {
				return fmt.Errorf("variable %q: %w", variable, ErrUnboundVariable)
			}
			node, isNode := bound.(*graph.Node)
			if !isNode || node == nil {
				return fmt.Errorf("SET target %q is not a node", variable)
			}

			node.SetProperty(field, assign.Value.Native())
			if err := e.engine.UpdateNode(node); err != nil {
				return err
			}
			e.result.PropertiesSet++
		}
	}
	return nil
}

func (e *executor) applyDelete(c *runeql.DeleteClause) error {
	for _, row := range e.rows {
		for _, variable := range c.Variables {
			bound, ok := row[variable]
			if !ok {
				return fmt.Errorf("variable %q: %w", variable, ErrUnboundVariable)
			}

			switch entity := bound.(type) {
			case nil:
				// Unmatched optional binding; nothing to delete.
			case *graph.Node:
				if err := e.deleteNode(entity, c.Detach); err != nil {
					return err
				}
			case *graph.Edge:
				existed, err := e.engine.RemoveEdge(entity.ID)
				if err != nil {
					return err
				}
				if existed {
					e.result.EdgesDeleted++
				}
			}
		}
	}
	return nil
}

func (e *executor) deleteNode(node *graph.Node, detach bool) error {
	edges, err := e.engine.IncidentEdges(node.ID)
	if errors.Is(err, graph.ErrNotFound) {
		return nil // already removed via another row
	}
	if err != nil {
		return err
	}

	if len(edges) > 0 && !detach {
		return fmt.Errorf("node %s has %d relationships: %w", node.ID, len(edges), ErrHasEdges)
	}

	existed, err := e.engine.RemoveNode(node.ID)
	if err != nil {
		return err
	}
	if existed {
		e.result.NodesDeleted++
		e.result.EdgesDeleted += len(edges)
	}
	return nil
}

func (e *executor) applyReturn(c *runeql.ReturnClause) error {
	seen := make(map[string]struct{})

	for _, row := range e.rows {
		rec := make(record.Record, len(c.Items))
		flat := flattenRow(row)

		for _, item := range c.Items {
			if entity, bound := row[item]; bound {
				rec[item] = entityRecord(entity)
				continue
			}
			if variable, _, found := strings.Cut(item, "."); found {
				if _, bound := row[variable]; bound {
					rec[item] = flat.Field(item)
					continue
				}
			}
			return fmt.Errorf("return item %q: %w", item, ErrUnboundVariable)
		}

		if c.Distinct {
			key := fmt.Sprintf("%v", rec)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}

		e.result.Rows = append(e.result.Rows, rec)
		if c.Limit != nil && len(e.result.Rows) >= *c.Limit {
			break
		}
	}
	return nil
}

// entityRecord renders a bound entity as a record for projection.
func entityRecord(entity any) any {
	switch v := entity.(type) {
	case *graph.Node:
		if v == nil {
			return nil
		}
		rec := make(record.Record, len(v.Properties)+2)
		for k, val := range v.Properties {
			rec[k] = val
		}
		rec["id"] = string(v.ID)
		if len(v.Labels) > 0 {
			rec["labels"] = append([]string(nil), v.Labels...)
		}
		return rec
	case *graph.Edge:
		if v == nil {
			return nil
		}
		rec := make(record.Record, len(v.Properties)+4)
		for k, val := range v.Properties {
			rec[k] = val
		}
		rec["id"] = string(v.ID)
		rec["type"] = v.Type
		rec["source"] = string(v.Source)
		rec["target"] = string(v.Target)
		return rec
	}
	return nil
}

// patternVariables lists the variables a pattern would bind.
func patternVariables(pattern *runeql.PathPattern) []string {
	var vars []string
	for _, el := range pattern.Elements() {
		switch p := el.(type) {
		case *runeql.NodePattern:
			if p.Variable != "" {
				vars = append(vars, p.Variable)
			}
		case *runeql.EdgePattern:
			if p.Variable != "" {
				vars = append(vars, p.Variable)
			}
		}
	}
	return vars
}
