// Literal values for RuneQL.
//
// RuneQL literals are dynamically typed in the query text: property
// constraints, WHERE conditions, and SET assignments all carry a value
// whose type is inferred from the token. Instead of passing interface{}
// around, the parser coerces every literal into a closed tagged union
// (Value) so downstream code can switch on exactly three kinds.
//
// # Coercion Rules
//
// Applied uniformly wherever a literal token appears:
//
//	all digits (optional leading -)        → Int
//	exactly one '.' with digit remainder   → Float
//	anything else                          → Text
package runeql

import (
	"strconv"
	"strings"
)

// ValueKind identifies the type held by a Value.
type ValueKind int

const (
	Int ValueKind = iota
	Float
	Text
)

// String returns the kind name.
func (k ValueKind) String() string {
	switch k {
	case Int:
		return "Int"
	case Float:
		return "Float"
	default:
		return "Text"
	}
}

// Value is a closed tagged union over the three RuneQL literal types.
//
// Exactly one of the payload fields is meaningful, selected by Kind.
// The zero value is the empty Text value.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Text  string
}

// IntValue wraps an integer literal.
func IntValue(v int64) Value { return Value{Kind: Int, Int: v} }

// FloatValue wraps a float literal.
func FloatValue(v float64) Value { return Value{Kind: Float, Float: v} }

// TextValue wraps a string literal.
func TextValue(s string) Value { return Value{Kind: Text, Text: s} }

// CoerceValue converts a literal token into a typed Value.
//
// Example:
//
//	CoerceValue("42")     // IntValue(42)
//	CoerceValue("-7")     // IntValue(-7)
//	CoerceValue("3.14")   // FloatValue(3.14)
//	CoerceValue("Alice")  // TextValue("Alice")
//	CoerceValue("1.2.3")  // TextValue("1.2.3")
func CoerceValue(token string) Value {
	body := strings.TrimPrefix(token, "-")
	if body == "" {
		return TextValue(token)
	}

	if isAllDigits(body) {
		if i, err := strconv.ParseInt(token, 10, 64); err == nil {
			return IntValue(i)
		}
		// Overflows int64; fall through to float, then text.
	}

	if strings.Count(body, ".") == 1 && isAllDigits(strings.ReplaceAll(body, ".", "")) {
		if f, err := strconv.ParseFloat(token, 64); err == nil {
			return FloatValue(f)
		}
	}

	return TextValue(token)
}

// Native unwraps the Value into its Go representation
// (int64, float64, or string).
func (v Value) Native() any {
	switch v.Kind {
	case Int:
		return v.Int
	case Float:
		return v.Float
	default:
		return v.Text
	}
}

// String renders the value as it would appear in query text.
func (v Value) String() string {
	switch v.Kind {
	case Int:
		return strconv.FormatInt(v.Int, 10)
	case Float:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return v.Text
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
