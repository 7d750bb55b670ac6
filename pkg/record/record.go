// Package record implements the generic record-query evaluator shared
// by every dataset backend.
//
// A Record is an untyped field map; a Query describes a declarative
// selection over a sequence of records. Apply evaluates the fixed
// pipeline:
//
//	filter -> select -> order_by -> offset -> limit
//
// in that order regardless of how the query was written. Missing
// fields never raise: a missing field reads as nil, and nil sorts
// before any present value. The evaluator owns no storage; backends
// convert their native rows into Records and hand them here.
package record

import (
	"sort"
	"strings"
)

// Record is one evaluable row: a field map with dynamically-typed
// values.
type Record map[string]any

// Field returns the value of a field, nil when absent. Evaluation
// treats absence and an explicit nil identically.
func (r Record) Field(name string) any {
	return r[name]
}

// Project returns a copy of the record narrowed to the given fields.
// Requested fields that are absent appear with a nil value, so every
// projected record has the same shape.
func (r Record) Project(fields []string) Record {
	out := make(Record, len(fields))
	for _, f := range fields {
		out[f] = r[f]
	}
	return out
}

// Filter is a conjunction of field comparisons, optionally nested
// under And/Or groups. A zero Filter matches everything.
type Filter struct {
	// Field comparisons at this level, all of which must match.
	Conditions []Condition

	// And subgroups: every group must match.
	And []*Filter

	// Or subgroups: at least one must match (when any are present).
	Or []*Filter
}

// Condition compares one record field against a literal.
type Condition struct {
	Field string
	Op    string // =, !=, <, >, <=, >=
	Value any
}

// Matches reports whether the record satisfies the filter.
//
// Nil semantics: "=" matches when both sides are nil, "!=" matches
// when exactly one side is nil, and every ordering comparison against
// nil is false. Comparing values of incompatible types is false rather
// than an error.
func (f *Filter) Matches(r Record) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Conditions {
		if !c.matches(r) {
			return false
		}
	}
	for _, sub := range f.And {
		if !sub.Matches(r) {
			return false
		}
	}
	if len(f.Or) > 0 {
		matched := false
		for _, sub := range f.Or {
			if sub.Matches(r) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func (c Condition) matches(r Record) bool {
	return compareOp(r.Field(c.Field), c.Op, c.Value)
}

// compareOp evaluates one comparison with the documented nil and
// type-mismatch semantics.
func compareOp(left any, op string, right any) bool {
	if left == nil || right == nil {
		switch op {
		case "=":
			return left == nil && right == nil
		case "!=", "<>":
			return (left == nil) != (right == nil)
		}
		return false
	}

	cmp, ok := compareValues(left, right)
	if !ok {
		// Incompatible types: only inequality can be said.
		switch op {
		case "!=", "<>":
			return true
		}
		return false
	}

	switch op {
	case "=":
		return cmp == 0
	case "!=", "<>":
		return cmp != 0
	case "<":
		return cmp < 0
	case ">":
		return cmp > 0
	case "<=":
		return cmp <= 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// compareValues orders two values of compatible type. Numbers compare
// across int/float representations, strings lexicographically, bools
// false-before-true. Returns ok=false for incompatible types.
func compareValues(a, b any) (int, bool) {
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	if aok != bok {
		return 0, false
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	if aok != bok {
		return 0, false
	}

	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		switch {
		case !ab && bb:
			return -1, true
		case ab && !bb:
			return 1, true
		}
		return 0, true
	}

	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// OrderKey is one sort key of an order_by list.
type OrderKey struct {
	Field      string
	Descending bool
}

// Query is the declarative selection evaluated by Apply. Zero-value
// fields mean "absent": a nil Filter matches everything, empty Select
// keeps whole records, nil Limit means unlimited.
type Query struct {
	Filter  *Filter
	Select  []string
	OrderBy []OrderKey
	Offset  int
	Limit   *int
}

// Apply evaluates the query pipeline over the input records and
// returns the result. The input slice is never mutated; ordering is
// performed on a copy. Evaluation order is fixed: filter, then select,
// then order_by, then offset, then limit, regardless of field order in
// the Query.
func Apply(records []Record, q *Query) []Record {
	if q == nil {
		return append([]Record(nil), records...)
	}

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if q.Filter.Matches(r) {
			out = append(out, r)
		}
	}

	if len(q.Select) > 0 {
		for i, r := range out {
			out[i] = r.Project(q.Select)
		}
	}

	sortRecords(out, q.OrderBy)

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			out = out[:0]
		} else {
			out = out[q.Offset:]
		}
	}

	if q.Limit != nil && *q.Limit >= 0 && *q.Limit < len(out) {
		out = out[:*q.Limit]
	}

	return out
}

// sortRecords applies the order keys as a sequence of stable sorts in
// reverse key order, so the first key dominates and ties fall through
// to later keys. Nil (and missing) fields sort before any present
// value; records that compare equal keep their input order.
func sortRecords(records []Record, keys []OrderKey) {
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		sort.SliceStable(records, func(a, b int) bool {
			less := lessByField(records[a], records[b], key.Field)
			if key.Descending {
				return lessByField(records[b], records[a], key.Field)
			}
			return less
		})
	}
}

// lessByField orders two records by one field with nil-first
// semantics. Incompatible types are treated as equal, preserving input
// order under the stable sort.
func lessByField(a, b Record, field string) bool {
	av := a.Field(field)
	bv := b.Field(field)
	if av == nil || bv == nil {
		return av == nil && bv != nil
	}
	cmp, ok := compareValues(av, bv)
	return ok && cmp < 0
}
