// Clause parsing for RuneQL.
//
// The Parser is a top-level dispatcher over the token stream: it
// recognizes clause-introducing keywords case-insensitively and
// delegates pattern work to the routines in pattern.go. Clause order
// is preserved exactly as written.
//
// Two permissive behaviors are configurable rather than baked in:
// unrecognized characters during tokenization and unrecognized
// top-level tokens during clause dispatch are silently skipped by
// default, and rejected with a ParseError in strict mode.
package runeql

import (
	"strconv"
	"strings"
)

// Option configures a Parser.
type Option func(*Parser)

// WithStrictTokens makes unrecognized characters a ParseError instead
// of silently dropping them.
func WithStrictTokens() Option {
	return func(p *Parser) { p.strictTokens = true }
}

// WithStrictClauses makes unrecognized top-level tokens a ParseError
// instead of silently skipping them.
func WithStrictClauses() Option {
	return func(p *Parser) { p.strictClauses = true }
}

// Parser parses RuneQL query strings into Query ASTs.
//
// A Parser is reusable across calls but not safe for concurrent use;
// each Parse starts from a fresh token stream.
type Parser struct {
	strictTokens  bool
	strictClauses bool

	tokens []Token
	pos    int
}

// NewParser creates a parser with the given options. The default is
// permissive on both documented skip behaviors.
func NewParser(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse converts a query string into a Query. On ParseError the
// partial Query is discarded; parsing never resumes past an error.
func (p *Parser) Parse(query string) (*Query, error) {
	tokens, err := tokenize(query, p.strictTokens)
	if err != nil {
		return nil, err
	}
	p.tokens = tokens
	p.pos = 0

	q := &Query{}
	for {
		tok, ok := p.peek()
		if !ok {
			break
		}

		var clause Clause
		var parseErr error

		switch strings.ToUpper(tok.Text) {
		case "MATCH":
			clause, parseErr = p.parseMatch(false)
		case "OPTIONAL":
			clause, parseErr = p.parseOptionalMatch()
		case "CREATE":
			clause, parseErr = p.parseCreate()
		case "RETURN":
			clause, parseErr = p.parseReturn()
		case "WHERE":
			clause, parseErr = p.parseWhere()
		case "SET":
			clause, parseErr = p.parseSet()
		case "DELETE":
			clause, parseErr = p.parseDelete(false)
		case "DETACH":
			clause, parseErr = p.parseDetachDelete()
		default:
			if p.strictClauses {
				return nil, parseErrorf("unexpected token %q at top level", tok.Text)
			}
			p.advance()
			continue
		}

		if parseErr != nil {
			return nil, parseErr
		}
		q.Clauses = append(q.Clauses, clause)
	}

	return q, nil
}

func (p *Parser) parseMatch(optional bool) (*MatchClause, error) {
	p.advance() // MATCH
	patterns, err := p.parsePathPatterns()
	if err != nil {
		return nil, err
	}
	return &MatchClause{Patterns: patterns, Optional: optional}, nil
}

func (p *Parser) parseOptionalMatch() (*MatchClause, error) {
	p.advance() // OPTIONAL
	tok, ok := p.peek()
	if !ok || !strings.EqualFold(tok.Text, "MATCH") {
		got := "end of input"
		if ok {
			got = strconv.Quote(tok.Text)
		}
		return nil, parseErrorf("expected MATCH after OPTIONAL, got %s", got)
	}
	return p.parseMatch(true)
}

func (p *Parser) parseCreate() (*CreateClause, error) {
	p.advance() // CREATE
	patterns, err := p.parsePathPatterns()
	if err != nil {
		return nil, err
	}
	return &CreateClause{Patterns: patterns}, nil
}

func (p *Parser) parseReturn() (*ReturnClause, error) {
	p.advance() // RETURN

	clause := &ReturnClause{}
	if tok, ok := p.peek(); ok && strings.EqualFold(tok.Text, "DISTINCT") {
		clause.Distinct = true
		p.advance()
	}

	// Items are kept as raw tokens, comma separated.
	for {
		tok, ok := p.advanceToken()
		if !ok {
			return clause, nil
		}
		clause.Items = append(clause.Items, tok.Text)

		if next, ok := p.peek(); ok && next.Text == "," {
			p.advance()
		} else {
			break
		}
	}

	if tok, ok := p.peek(); ok && strings.EqualFold(tok.Text, "LIMIT") {
		p.advance()
		if limTok, ok := p.peek(); ok && limTok.Kind == TokenNumber {
			if n, err := strconv.Atoi(limTok.Text); err == nil {
				p.advance()
				clause.Limit = &n
			}
		}
	}

	return clause, nil
}

func (p *Parser) parseWhere() (*WhereClause, error) {
	p.advance() // WHERE

	clause := &WhereClause{}
	for {
		keyTok, ok := p.advanceToken()
		if !ok {
			break
		}

		opTok, ok := p.advanceToken()
		if !ok {
			return nil, parseErrorf("expected operator after %q", keyTok.Text)
		}
		if !isComparisonOperator(opTok.Text) {
			return nil, parseErrorf("expected comparison operator after %q, got %q", keyTok.Text, opTok.Text)
		}

		valTok, ok := p.advanceToken()
		if !ok {
			return nil, parseErrorf("expected value after operator %q", opTok.Text)
		}

		clause.Conditions = append(clause.Conditions, Property{
			Key:      keyTok.Text,
			Value:    p.literal(valTok),
			Operator: opTok.Text,
		})

		next, ok := p.peek()
		if ok && (strings.EqualFold(next.Text, "AND") || next.Text == ",") {
			p.advance()
			continue
		}
		break
	}

	return clause, nil
}

func (p *Parser) parseSet() (*SetClause, error) {
	p.advance() // SET

	clause := &SetClause{}
	for {
		keyTok, ok := p.advanceToken()
		if !ok {
			break
		}

		if _, err := p.expect("="); err != nil {
			return nil, err
		}

		valTok, ok := p.advanceToken()
		if !ok {
			return nil, parseErrorf("expected value for assignment to %q", keyTok.Text)
		}

		clause.Assignments = append(clause.Assignments, Property{
			Key:      keyTok.Text,
			Value:    p.literal(valTok),
			Operator: "=",
		})

		if next, ok := p.peek(); ok && next.Text == "," {
			p.advance()
		} else {
			break
		}
	}

	return clause, nil
}

func (p *Parser) parseDelete(detach bool) (*DeleteClause, error) {
	p.advance() // DELETE

	clause := &DeleteClause{Detach: detach}
	for {
		tok, ok := p.advanceToken()
		if !ok {
			break
		}
		clause.Variables = append(clause.Variables, tok.Text)

		if next, ok := p.peek(); ok && next.Text == "," {
			p.advance()
		} else {
			break
		}
	}

	return clause, nil
}

func (p *Parser) parseDetachDelete() (*DeleteClause, error) {
	p.advance() // DETACH
	tok, ok := p.peek()
	if !ok || !strings.EqualFold(tok.Text, "DELETE") {
		got := "end of input"
		if ok {
			got = strconv.Quote(tok.Text)
		}
		return nil, parseErrorf("expected DELETE after DETACH, got %s", got)
	}
	return p.parseDelete(true)
}

// literal coerces a value token. Quoted strings stay Text even when
// their content looks numeric.
func (p *Parser) literal(tok Token) Value {
	if tok.Kind == TokenString {
		return TextValue(tok.Text)
	}
	return CoerceValue(tok.Text)
}

func isComparisonOperator(s string) bool {
	switch s {
	case "=", "!=", "<>", "<", ">", "<=", ">=":
		return true
	}
	return false
}

// peek returns the current token without consuming it.
func (p *Parser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

// advance consumes the current token.
func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

// advanceToken consumes and returns the current token.
func (p *Parser) advanceToken() (Token, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

// expect consumes a token and verifies its text.
func (p *Parser) expect(text string) (Token, error) {
	tok, ok := p.advanceToken()
	if !ok {
		return Token{}, parseErrorf("expected %q but reached end of input", text)
	}
	if !strings.EqualFold(tok.Text, text) {
		return Token{}, parseErrorf("expected %q but got %q", text, tok.Text)
	}
	return tok, nil
}
