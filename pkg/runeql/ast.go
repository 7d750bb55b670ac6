// Package runeql provides parsing for the RuneQL query language.
//
// RuneQL is a Cypher-like pattern language over nodes, edges, and
// paths. A query is an ordered sequence of clauses:
//
//	MATCH (n:Person {name: 'Alice'})-[r:KNOWS]->(m)
//	WHERE m.age > 18
//	RETURN n, r, m
//
// The package converts query text into a typed AST: Tokenize produces
// the token stream, Parser assembles Query values from clauses, and
// the AST types render themselves back to query text via String.
// Clause order is preserved exactly as written; the grammar does not
// enforce inter-clause ordering.
package runeql

import (
	"fmt"
	"strings"
)

// ParseError reports a query that could not be parsed. Parsing is not
// resumable past a ParseError; callers must discard the partial Query.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return "parse error: " + e.Msg }

func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

// Direction is the orientation of an edge pattern.
type Direction int

const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
	DirectionUndirected
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionOutgoing:
		return "outgoing"
	case DirectionIncoming:
		return "incoming"
	default:
		return "undirected"
	}
}

// Property is a key/value constraint or assignment. Inside node and
// edge patterns the operator is always "="; in WHERE clauses it is one
// of the six comparison operators.
type Property struct {
	Key      string
	Value    Value
	Operator string
}

func (p Property) String() string {
	op := p.Operator
	if op == "" {
		op = "="
	}
	return fmt.Sprintf("%s %s %s", p.Key, op, p.Value)
}

// NodePattern describes a node to match or create. All fields are
// optional: the anonymous pattern () is valid.
type NodePattern struct {
	Variable   string
	Labels     []string
	Properties []Property
}

func (n *NodePattern) pathElement() {}

func (n *NodePattern) String() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(n.Variable)
	for _, l := range n.Labels {
		b.WriteByte(':')
		b.WriteString(l)
	}
	if len(n.Properties) > 0 {
		b.WriteString(" {")
		b.WriteString(joinProperties(n.Properties))
		b.WriteByte('}')
	}
	b.WriteByte(')')
	return b.String()
}

// EdgePattern describes a relationship to match or create.
type EdgePattern struct {
	Variable   string
	Type       string
	Properties []Property
	Direction  Direction
}

func (e *EdgePattern) pathElement() {}

func (e *EdgePattern) String() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(e.Variable)
	if e.Type != "" {
		b.WriteByte(':')
		b.WriteString(e.Type)
	}
	if len(e.Properties) > 0 {
		b.WriteString(" {")
		b.WriteString(joinProperties(e.Properties))
		b.WriteByte('}')
	}
	b.WriteByte(']')

	switch e.Direction {
	case DirectionOutgoing:
		return "-" + b.String() + "->"
	case DirectionIncoming:
		return "<-" + b.String() + "-"
	default:
		return "-" + b.String() + "-"
	}
}

// PathElement is either a *NodePattern or an *EdgePattern.
type PathElement interface {
	pathElement()
	String() string
}

// PathPattern is an alternating sequence of node and edge patterns.
// The sequence always begins with a node, ends with a node, and has
// exactly one edge between adjacent nodes. The invariant is enforced
// at construction: AppendNode and AppendEdge reject out-of-order
// pushes instead of trusting caller discipline.
type PathPattern struct {
	elements []PathElement
}

// AppendNode appends a node pattern. Fails if the previous element is
// already a node.
func (p *PathPattern) AppendNode(n *NodePattern) error {
	if len(p.elements) > 0 {
		if _, ok := p.elements[len(p.elements)-1].(*NodePattern); ok {
			return parseErrorf("node pattern %s not preceded by an edge", n)
		}
	}
	p.elements = append(p.elements, n)
	return nil
}

// AppendEdge appends an edge pattern. Fails if the path is empty or
// the previous element is already an edge.
func (p *PathPattern) AppendEdge(e *EdgePattern) error {
	if len(p.elements) == 0 {
		return parseErrorf("edge pattern %s at start of path", e)
	}
	if _, ok := p.elements[len(p.elements)-1].(*EdgePattern); ok {
		return parseErrorf("edge pattern %s not preceded by a node", e)
	}
	p.elements = append(p.elements, e)
	return nil
}

// Elements returns the alternating node/edge sequence.
func (p *PathPattern) Elements() []PathElement { return p.elements }

// Len reports the number of elements in the path.
func (p *PathPattern) Len() int { return len(p.elements) }

// Complete reports whether the path starts and ends with a node.
func (p *PathPattern) Complete() bool {
	if len(p.elements) == 0 {
		return false
	}
	_, ok := p.elements[len(p.elements)-1].(*NodePattern)
	return ok
}

func (p *PathPattern) String() string {
	var b strings.Builder
	for _, el := range p.elements {
		b.WriteString(el.String())
	}
	return b.String()
}

// Clause is one top-level statement of a query.
type Clause interface {
	clause()
	String() string
}

// MatchClause matches path patterns against the graph. Optional marks
// an OPTIONAL MATCH.
type MatchClause struct {
	Patterns []*PathPattern
	Optional bool
}

func (c *MatchClause) clause() {}

func (c *MatchClause) String() string {
	prefix := "MATCH "
	if c.Optional {
		prefix = "OPTIONAL MATCH "
	}
	return prefix + joinPaths(c.Patterns)
}

// CreateClause materializes path patterns in the graph.
type CreateClause struct {
	Patterns []*PathPattern
}

func (c *CreateClause) clause() {}

func (c *CreateClause) String() string { return "CREATE " + joinPaths(c.Patterns) }

// ReturnClause projects variables or expressions. Items are kept as
// the raw tokens they were written as. Limit is nil when absent.
type ReturnClause struct {
	Items    []string
	Distinct bool
	Limit    *int
}

func (c *ReturnClause) clause() {}

func (c *ReturnClause) String() string {
	var b strings.Builder
	b.WriteString("RETURN ")
	if c.Distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(strings.Join(c.Items, ", "))
	if c.Limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *c.Limit)
	}
	return b.String()
}

// WhereClause filters bindings by key/operator/value conditions joined
// with AND. Keys keep their dotted form (n.age).
type WhereClause struct {
	Conditions []Property
}

func (c *WhereClause) clause() {}

func (c *WhereClause) String() string {
	parts := make([]string, len(c.Conditions))
	for i, cond := range c.Conditions {
		parts[i] = cond.String()
	}
	return "WHERE " + strings.Join(parts, " AND ")
}

// SetClause assigns property values to bound variables.
type SetClause struct {
	Assignments []Property
}

func (c *SetClause) clause() {}

func (c *SetClause) String() string {
	parts := make([]string, len(c.Assignments))
	for i, a := range c.Assignments {
		parts[i] = fmt.Sprintf("%s = %s", a.Key, a.Value)
	}
	return "SET " + strings.Join(parts, ", ")
}

// DeleteClause removes bound nodes. Detach marks DETACH DELETE, which
// signals the execution layer to also remove incident edges.
type DeleteClause struct {
	Variables []string
	Detach    bool
}

func (c *DeleteClause) clause() {}

func (c *DeleteClause) String() string {
	prefix := "DELETE "
	if c.Detach {
		prefix = "DETACH DELETE "
	}
	return prefix + strings.Join(c.Variables, ", ")
}

// Query is the ordered clause sequence of one parsed query.
type Query struct {
	Clauses []Clause
}

func (q *Query) String() string {
	parts := make([]string, len(q.Clauses))
	for i, c := range q.Clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, "\n")
}

// ClausesOf returns the clauses of a given concrete type, in query
// order.
//
//	matches := runeql.ClausesOf[*runeql.MatchClause](query)
func ClausesOf[T Clause](q *Query) []T {
	var out []T
	for _, c := range q.Clauses {
		if t, ok := c.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// joinProperties renders a brace-style property list (key: value), as
// written inside node and edge patterns. Property.String with its
// operator is the WHERE-clause rendering.
func joinProperties(props []Property) string {
	parts := make([]string, len(props))
	for i, p := range props {
		parts[i] = fmt.Sprintf("%s: %s", p.Key, p.Value)
	}
	return strings.Join(parts, ", ")
}

func joinPaths(paths []*PathPattern) string {
	parts := make([]string, len(paths))
	for i, p := range paths {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}
