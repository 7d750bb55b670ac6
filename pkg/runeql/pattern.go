// Pattern parsing for RuneQL.
//
// This file contains the recursive-descent routines for node patterns,
// edge patterns, and path pattern sequences. They are shared by every
// clause that carries patterns (MATCH, OPTIONAL MATCH, CREATE).
//
// Node patterns:
//
//	()                     - Anonymous node
//	(n)                    - Named node
//	(n:Person)             - Node with label
//	(n:A:B {age: 30})      - Multiple labels and properties
//
// Edge patterns:
//
//	-[r:KNOWS]->           - Outgoing, typed, named
//	<-[r]-                 - Incoming
//	--                     - Undirected, anonymous
//	-->  <--  <->          - Bracketless arrow forms
//
// Path pattern sequences alternate nodes and edges; a comma starts a
// new path. Parsing stops at the first token that is neither a node
// start, an edge start, nor a separator, handing control back to the
// clause parser. That boundary rule is how pattern parsing interleaves
// with clause keyword recognition without global lookahead.
package runeql

import "strings"

// parsePathPatterns parses a comma-separated list of path patterns.
func (p *Parser) parsePathPatterns() ([]*PathPattern, error) {
	var patterns []*PathPattern
	current := &PathPattern{}

	flush := func() error {
		if current.Len() == 0 {
			return nil
		}
		if !current.Complete() {
			return parseErrorf("path pattern %s must end with a node", current)
		}
		patterns = append(patterns, current)
		current = &PathPattern{}
		return nil
	}

loop:
	for {
		tok, ok := p.peek()
		if !ok {
			break
		}

		switch {
		case tok.Text == "(":
			node, err := p.parseNodePattern()
			if err != nil {
				return nil, err
			}
			if err := current.AppendNode(node); err != nil {
				return nil, err
			}

		case tok.Kind == TokenArrow || tok.Text == "-" || tok.Text == "<":
			edge, err := p.parseEdgePattern()
			if err != nil {
				return nil, err
			}
			if err := current.AppendEdge(edge); err != nil {
				return nil, err
			}

		case tok.Text == ",":
			p.advance()
			if err := flush(); err != nil {
				return nil, err
			}

		default:
			break loop
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// parseNodePattern parses (variable:Label:Label2 {key: value}).
func (p *Parser) parseNodePattern() (*NodePattern, error) {
	if _, err := p.expect("("); err != nil {
		return nil, err
	}

	node := &NodePattern{}
	for {
		tok, ok := p.peek()
		if !ok {
			return nil, parseErrorf("unterminated node pattern %s", node)
		}
		if tok.Text == ")" {
			p.advance()
			return node, nil
		}
		p.advance()

		switch {
		case tok.Text == "{":
			props, err := p.parsePropertyList()
			if err != nil {
				return nil, err
			}
			node.Properties = props

		case strings.HasPrefix(tok.Text, ":") && len(tok.Text) > 1:
			node.Labels = append(node.Labels, tok.Text[1:])

		case strings.Contains(tok.Text, ":") && node.Variable == "":
			variable, label, _ := strings.Cut(tok.Text, ":")
			node.Variable = variable
			if label != "" {
				node.Labels = append(node.Labels, label)
			}

		case node.Variable == "" && !strings.Contains(tok.Text, ":"):
			node.Variable = tok.Text
		}
	}
}

// parseEdgePattern parses -[variable:TYPE {key: value}]-> and the
// bracketless forms. Direction resolution:
//
//	leading <-          fixes incoming
//	trailing -> or >    outgoing, unless already fixed incoming
//	neither             undirected
func (p *Parser) parseEdgePattern() (*EdgePattern, error) {
	edge := &EdgePattern{Direction: DirectionUndirected}

	tok, ok := p.peek()
	if !ok {
		return nil, parseErrorf("expected edge pattern")
	}

	// Bracketless arrow ligatures are complete edges on their own.
	if tok.Kind == TokenArrow {
		p.advance()
		switch tok.Text {
		case "-->":
			edge.Direction = DirectionOutgoing
		case "<--":
			edge.Direction = DirectionIncoming
		}
		return edge, nil
	}

	incoming := false
	if tok.Text == "<" {
		p.advance()
		if _, err := p.expect("-"); err != nil {
			return nil, err
		}
		incoming = true
		edge.Direction = DirectionIncoming
	} else if tok.Text == "-" {
		p.advance()
	}

	if next, ok := p.peek(); ok && next.Text == "[" {
		p.advance()
		if err := p.parseEdgeBody(edge); err != nil {
			return nil, err
		}
	}

	// Trailing arrowhead decides the final direction.
	switch next, ok := p.peek(); {
	case ok && next.Text == "-":
		p.advance()
		if after, ok := p.peek(); ok && after.Text == ">" {
			p.advance()
			if !incoming {
				edge.Direction = DirectionOutgoing
			}
		}
	case ok && next.Text == ">":
		p.advance()
		if !incoming {
			edge.Direction = DirectionOutgoing
		}
	}

	return edge, nil
}

// parseEdgeBody consumes the [variable:TYPE {props}] body after the
// opening bracket, up to and including the closing bracket.
func (p *Parser) parseEdgeBody(edge *EdgePattern) error {
	for {
		tok, ok := p.peek()
		if !ok {
			return parseErrorf("unterminated edge pattern %s", edge)
		}
		if tok.Text == "]" {
			p.advance()
			return nil
		}
		p.advance()

		switch {
		case tok.Text == "{":
			props, err := p.parsePropertyList()
			if err != nil {
				return err
			}
			edge.Properties = props

		case strings.HasPrefix(tok.Text, ":") && len(tok.Text) > 1:
			edge.Type = tok.Text[1:]

		case strings.Contains(tok.Text, ":"):
			variable, typ, _ := strings.Cut(tok.Text, ":")
			edge.Variable = variable
			if typ != "" {
				edge.Type = typ
			}

		case edge.Variable == "":
			edge.Variable = tok.Text
		}
	}
}

// parsePropertyList parses key: value pairs after an opening brace, up
// to and including the closing brace. Values take the standard literal
// coercion; quoted strings stay Text regardless of content.
func (p *Parser) parsePropertyList() ([]Property, error) {
	var props []Property

	for {
		tok, ok := p.peek()
		if !ok {
			return nil, parseErrorf("unterminated property list")
		}
		if tok.Text == "}" {
			p.advance()
			return props, nil
		}
		p.advance()

		key := tok.Text

		// A fused key:value token carries both halves.
		if k, v, found := strings.Cut(key, ":"); found && v != "" {
			props = append(props, Property{Key: k, Value: CoerceValue(v), Operator: "="})
		} else {
			if _, err := p.expect(":"); err != nil {
				return nil, err
			}
			valTok, ok := p.advanceToken()
			if !ok {
				return nil, parseErrorf("expected value for property %q", key)
			}
			props = append(props, Property{Key: key, Value: p.literal(valTok), Operator: "="})
		}

		if next, ok := p.peek(); ok && next.Text == "," {
			p.advance()
		}
	}
}
