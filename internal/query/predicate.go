// Package query implements the list-query engine shared by every collection
// endpoint: predicate trees for filtering and search, ordering resolution and
// the pagination policy. Predicates are built once per request and translated
// per backend (evaluated directly by the memory store, rendered to SQL by the
// sqlite and postgres stores).
package query

import (
	"strings"
	"time"
)

// Op is a comparison operator in a filter condition.
type Op string

const (
	// OpExact is case-sensitive equality.
	OpExact Op = "exact"
	// OpIExact is case-insensitive equality.
	OpIExact Op = "iexact"
	// OpIContains is case-insensitive substring match.
	OpIContains Op = "icontains"
	// OpEq is identifier equality.
	OpEq Op = "eq"
	// OpBool matches a boolean column.
	OpBool Op = "bool"
	// OpDateGTE and OpDateLTE bound a date range, inclusive.
	OpDateGTE Op = "date_gte"
	OpDateLTE Op = "date_lte"
)

// Cond is a single condition against a field path. Field paths use dotted
// notation with at most one relationship hop, e.g. "property.street_name".
type Cond struct {
	Field string
	Op    Op
	Value any // string, bool, int64 or time.Time depending on Op
}

// Pred is a predicate tree. Exactly one of All, Any or Cond is set; a zero
// Pred matches everything.
type Pred struct {
	All  []Pred
	Any  []Pred
	Cond *Cond
}

// Where builds a leaf condition.
func Where(field string, op Op, value any) Pred {
	return Pred{Cond: &Cond{Field: field, Op: op, Value: value}}
}

// And combines predicates conjunctively, skipping empty ones.
func And(ps ...Pred) Pred {
	kept := make([]Pred, 0, len(ps))
	for _, p := range ps {
		if !p.Empty() {
			kept = append(kept, p)
		}
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return Pred{All: kept}
}

// Or combines predicates disjunctively, skipping empty ones.
func Or(ps ...Pred) Pred {
	kept := make([]Pred, 0, len(ps))
	for _, p := range ps {
		if !p.Empty() {
			kept = append(kept, p)
		}
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return Pred{Any: kept}
}

// Empty reports whether the predicate matches everything.
func (p Pred) Empty() bool {
	return p.Cond == nil && len(p.All) == 0 && len(p.Any) == 0
}

// Getter resolves a field path to its values for one record. Paths across
// to-many relationships yield multiple values; a missing path yields none.
type Getter func(field string) []any

// Eval evaluates the predicate against a record's field values. A to-many
// condition holds when any of the values matches.
func (p Pred) Eval(get Getter) bool {
	switch {
	case p.Cond != nil:
		return p.Cond.eval(get)
	case len(p.All) > 0:
		for _, sub := range p.All {
			if !sub.Eval(get) {
				return false
			}
		}
		return true
	case len(p.Any) > 0:
		for _, sub := range p.Any {
			if sub.Eval(get) {
				return true
			}
		}
		return false
	}
	return true
}

func (c *Cond) eval(get Getter) bool {
	vals := get(c.Field)
	for _, v := range vals {
		if c.matches(v) {
			return true
		}
	}
	return false
}

func (c *Cond) matches(v any) bool {
	switch c.Op {
	case OpIContains:
		s, ok := v.(string)
		q, _ := c.Value.(string)
		return ok && strings.Contains(strings.ToLower(s), strings.ToLower(q))
	case OpIExact:
		s, ok := v.(string)
		q, _ := c.Value.(string)
		return ok && strings.EqualFold(s, q)
	case OpExact:
		s, ok := v.(string)
		q, _ := c.Value.(string)
		return ok && s == q
	case OpEq:
		id, ok := v.(int64)
		q, qok := c.Value.(int64)
		return ok && qok && id == q
	case OpBool:
		b, ok := v.(bool)
		q, qok := c.Value.(bool)
		return ok && qok && b == q
	case OpDateGTE:
		t, ok := v.(time.Time)
		q, qok := c.Value.(time.Time)
		return ok && qok && !t.Before(q)
	case OpDateLTE:
		t, ok := v.(time.Time)
		q, qok := c.Value.(time.Time)
		return ok && qok && !t.After(q)
	}
	return false
}

// ParseDate parses a YYYY-MM-DD filter value. Callers ignore the condition
// entirely when ok is false; a malformed date never fails the request.
func ParseDate(raw string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// EndOfDay shifts a parsed date to the last instant of that day so that
// "to" bounds are inclusive.
func EndOfDay(t time.Time) time.Time {
	return t.Add(24*time.Hour - time.Nanosecond)
}
