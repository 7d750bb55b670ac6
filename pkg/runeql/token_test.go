package runeql

import (
	"errors"
	"reflect"
	"testing"
)

func texts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Text
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "keywords and node pattern",
			input: "MATCH (n) RETURN n",
			want:  []string{"MATCH", "(", "n", ")", "RETURN", "n"},
		},
		{
			name:  "label fuses with variable",
			input: "(n:Person)",
			want:  []string{"(", "n:Person", ")"},
		},
		{
			name:  "bare label token",
			input: "(:Person)",
			want:  []string{"(", ":Person", ")"},
		},
		{
			name:  "dotted identifier stays one token",
			input: "WHERE n.age > 18",
			want:  []string{"WHERE", "n.age", ">", "18"},
		},
		{
			name:  "quoted string keeps spaces",
			input: "{name: 'Alice Smith'}",
			want:  []string{"{", "name", ":", "Alice Smith", "}"},
		},
		{
			name:  "double quotes work too",
			input: `{name: "Bob"}`,
			want:  []string{"{", "name", ":", "Bob", "}"},
		},
		{
			name:  "outgoing arrow",
			input: "(a)-->(b)",
			want:  []string{"(", "a", ")", "-->", "(", "b", ")"},
		},
		{
			name:  "incoming arrow",
			input: "(a)<--(b)",
			want:  []string{"(", "a", ")", "<--", "(", "b", ")"},
		},
		{
			name:  "bidirectional arrow",
			input: "(a)<->(b)",
			want:  []string{"(", "a", ")", "<->", "(", "b", ")"},
		},
		{
			name:  "bracketed edge",
			input: "-[r:KNOWS]->",
			want:  []string{"-", "[", "r:KNOWS", "]", "-", ">"},
		},
		{
			name:  "comparison operators longest match first",
			input: "a <= b >= c <> d != e < f > g = h",
			want:  []string{"a", "<=", "b", ">=", "c", "<>", "d", "!=", "e", "<", "f", ">", "g", "=", "h"},
		},
		{
			name:  "negative and decimal numbers",
			input: "{x: -5, y: 3.25}",
			want:  []string{"{", "x", ":", "-5", ",", "y", ":", "3.25", "}"},
		},
		{
			name:  "unterminated string swallows the rest",
			input: "RETURN 'oops",
			want:  []string{"RETURN", "oops"},
		},
		{
			name:  "unrecognized characters are skipped",
			input: "MATCH (n) @ RETURN n",
			want:  []string{"MATCH", "(", "n", ")", "RETURN", "n"},
		},
		{
			name:  "empty input",
			input: "",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := texts(Tokenize(tt.input))
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTokenizeKinds(t *testing.T) {
	tokens := Tokenize("MATCH (n:Person {age: 30, name: 'Ann'})-->(m)")

	kinds := map[string]TokenKind{}
	for _, tok := range tokens {
		kinds[tok.Text] = tok.Kind
	}

	if kinds["MATCH"] != TokenIdent {
		t.Errorf("MATCH should be an identifier, got %v", kinds["MATCH"])
	}
	if kinds["30"] != TokenNumber {
		t.Errorf("30 should be a number, got %v", kinds["30"])
	}
	if kinds["Ann"] != TokenString {
		t.Errorf("Ann should be a string, got %v", kinds["Ann"])
	}
	if kinds["-->"] != TokenArrow {
		t.Errorf("--> should be an arrow, got %v", kinds["-->"])
	}
	if kinds["("] != TokenSymbol {
		t.Errorf("( should be a symbol, got %v", kinds["("])
	}
}

func TestTokenizeStrictMode(t *testing.T) {
	// Permissive: skips the stray character.
	if _, err := tokenize("MATCH (n) @ RETURN n", false); err != nil {
		t.Errorf("Permissive mode should not error: %v", err)
	}

	// Strict: surfaces a ParseError.
	_, err := tokenize("MATCH (n) @ RETURN n", true)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("Expected ParseError in strict mode, got %v", err)
	}

	_, err = tokenize("RETURN 'unterminated", true)
	if !errors.As(err, &parseErr) {
		t.Errorf("Expected ParseError for unterminated string in strict mode, got %v", err)
	}
}

func TestTokenizeQuotedNumberStaysString(t *testing.T) {
	tokens := Tokenize("{zip: '12345'}")
	for _, tok := range tokens {
		if tok.Text == "12345" && tok.Kind != TokenString {
			t.Errorf("Quoted digits must stay a string token, got %v", tok.Kind)
		}
	}
}
