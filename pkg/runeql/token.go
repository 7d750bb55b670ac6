// Tokenizer for the RuneQL query language.
//
// The tokenizer converts a raw query string into an ordered token
// sequence in a single pass. Classes are attempted longest-match-first
// so that `<=` is never split into `<` and `=` and the arrow ligatures
// `-->`, `<--`, `<->` are never split into symbol pairs.
//
// Token classes, in order of attempt at each position:
//
//  1. Quoted strings ('...' or "..."), quotes stripped from the value
//  2. Signed/unsigned integer and decimal numeric literals
//  3. Identifiers: letter/underscore, then alphanumerics/underscore.
//     Dots continue an identifier (n.age stays one token) and a single
//     `name:Name` pair is fused so the pattern parser can split
//     variable and first label, mirroring label tokens like `:Person`.
//  4. Comparison operators: <= >= != <> < > =
//  5. Arrow ligatures: --> <-- <->
//  6. Structural symbols: - [ ] ( ) { } : , .
//
// Whitespace is skipped. By default any other character is silently
// dropped; strict mode turns such characters into a ParseError.
package runeql

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenString TokenKind = iota
	TokenNumber
	TokenIdent
	TokenOperator
	TokenArrow
	TokenSymbol
)

// String returns the kind name.
func (k TokenKind) String() string {
	switch k {
	case TokenString:
		return "String"
	case TokenNumber:
		return "Number"
	case TokenIdent:
		return "Ident"
	case TokenOperator:
		return "Operator"
	case TokenArrow:
		return "Arrow"
	default:
		return "Symbol"
	}
}

// Token is a classified lexical unit carrying its literal text.
// String tokens carry their content with the quotes already stripped.
type Token struct {
	Kind TokenKind
	Text string
}

// Tokenize converts a query string into tokens, silently dropping
// unrecognized characters. Each call scans the input from the start;
// tokens are never shared or resumed between calls.
func Tokenize(query string) []Token {
	tokens, _ := tokenize(query, false)
	return tokens
}

func tokenize(query string, strict bool) ([]Token, error) {
	var tokens []Token

	for i := 0; i < len(query); {
		c := query[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '\'' || c == '"':
			end := i + 1
			for end < len(query) && query[end] != c {
				end++
			}
			if end >= len(query) {
				if strict {
					return nil, parseErrorf("unterminated string literal starting at offset %d", i)
				}
				tokens = append(tokens, Token{TokenString, query[i+1:]})
				return tokens, nil
			}
			tokens = append(tokens, Token{TokenString, query[i+1 : end]})
			i = end + 1

		case isDigit(c) || (c == '-' && i+1 < len(query) && isDigit(query[i+1])):
			text, next := scanNumber(query, i)
			tokens = append(tokens, Token{TokenNumber, text})
			i = next

		case isIdentStart(c):
			text, next := scanIdent(query, i)
			tokens = append(tokens, Token{TokenIdent, text})
			i = next

		case c == '<':
			switch {
			case hasAt(query, i, "<--") || hasAt(query, i, "<->"):
				tokens = append(tokens, Token{TokenArrow, query[i : i+3]})
				i += 3
			case hasAt(query, i, "<=") || hasAt(query, i, "<>"):
				tokens = append(tokens, Token{TokenOperator, query[i : i+2]})
				i += 2
			default:
				tokens = append(tokens, Token{TokenOperator, "<"})
				i++
			}

		case c == '>':
			if hasAt(query, i, ">=") {
				tokens = append(tokens, Token{TokenOperator, ">="})
				i += 2
			} else {
				tokens = append(tokens, Token{TokenOperator, ">"})
				i++
			}

		case c == '!':
			if hasAt(query, i, "!=") {
				tokens = append(tokens, Token{TokenOperator, "!="})
				i += 2
			} else if strict {
				return nil, parseErrorf("unrecognized character %q at offset %d", c, i)
			} else {
				i++
			}

		case c == '=':
			tokens = append(tokens, Token{TokenOperator, "="})
			i++

		case c == '-':
			if hasAt(query, i, "-->") {
				tokens = append(tokens, Token{TokenArrow, "-->"})
				i += 3
			} else {
				tokens = append(tokens, Token{TokenSymbol, "-"})
				i++
			}

		case c == ':':
			// A colon directly followed by a name is a label/type token
			// like :Person; otherwise it is a structural colon.
			if i+1 < len(query) && isIdentStart(query[i+1]) {
				name, next := scanIdent(query, i+1)
				tokens = append(tokens, Token{TokenIdent, ":" + name})
				i = next
			} else {
				tokens = append(tokens, Token{TokenSymbol, ":"})
				i++
			}

		case isSymbol(c):
			tokens = append(tokens, Token{TokenSymbol, string(c)})
			i++

		default:
			if strict {
				return nil, parseErrorf("unrecognized character %q at offset %d", c, i)
			}
			i++
		}
	}

	return tokens, nil
}

// scanNumber consumes an optionally signed integer or decimal literal.
func scanNumber(s string, i int) (string, int) {
	start := i
	if s[i] == '-' {
		i++
	}
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i+1 < len(s) && s[i] == '.' && isDigit(s[i+1]) {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}
	return s[start:i], i
}

// scanIdent consumes an identifier. Dots continue the identifier so
// dotted keys like n.age survive as one token; a single trailing
// :Name is fused so variable:Label pairs stay splittable downstream.
func scanIdent(s string, i int) (string, int) {
	start := i
	for i < len(s) && (isIdentPart(s[i]) || s[i] == '.') {
		i++
	}
	if i+1 < len(s) && s[i] == ':' && isIdentStart(s[i+1]) {
		i++
		for i < len(s) && isIdentPart(s[i]) {
			i++
		}
	}
	return s[start:i], i
}

func hasAt(s string, i int, prefix string) bool {
	return i+len(prefix) <= len(s) && s[i:i+len(prefix)] == prefix
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isSymbol(c byte) bool {
	switch c {
	case '-', '[', ']', '(', ')', '{', '}', ':', ',', '.':
		return true
	}
	return false
}
