package query

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect selects placeholder and case-folding syntax for SQL rendering.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// SQLField describes how a predicate field path renders in SQL. Expr is the
// column expression the comparison applies to. Exists, when set, is a format
// template with one %s verb; the rendered comparison is substituted into it,
// which lets to-many hops render as EXISTS subqueries without joins that
// would force DISTINCT on the outer query.
type SQLField struct {
	Expr   string
	Exists string
}

// ColumnMap resolves a predicate field path to its SQL rendering.
// Unresolvable paths render as a never-matching clause, the same outcome as
// the in-memory evaluator.
type ColumnMap func(field string) (SQLField, bool)

// ToSQL renders the predicate as a WHERE fragment with bind arguments.
// argOffset is the number of placeholders already consumed by the caller.
// An empty predicate renders as "1=1".
func ToSQL(p Pred, cols ColumnMap, d Dialect, argOffset int) (string, []any) {
	r := &sqlRenderer{cols: cols, d: d, n: argOffset}
	clause := r.render(p)
	if clause == "" {
		clause = "1=1"
	}
	return clause, r.args
}

type sqlRenderer struct {
	cols ColumnMap
	d    Dialect
	n    int
	args []any
}

func (r *sqlRenderer) bind(v any) string {
	r.n++
	r.args = append(r.args, v)
	return r.d.placeholder(r.n)
}

func (r *sqlRenderer) render(p Pred) string {
	switch {
	case p.Cond != nil:
		return r.cond(p.Cond)
	case len(p.All) > 0:
		return r.join(p.All, " AND ")
	case len(p.Any) > 0:
		return r.join(p.Any, " OR ")
	}
	return ""
}

func (r *sqlRenderer) join(ps []Pred, sep string) string {
	parts := make([]string, 0, len(ps))
	for _, sub := range ps {
		if s := r.render(sub); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func (r *sqlRenderer) cond(c *Cond) string {
	f, ok := r.cols(c.Field)
	if !ok {
		return "1=0"
	}
	cmp := r.compare(f.Expr, c)
	if cmp == "" {
		return "1=0"
	}
	if f.Exists != "" {
		return fmt.Sprintf(f.Exists, cmp)
	}
	return cmp
}

func (r *sqlRenderer) compare(col string, c *Cond) string {
	switch c.Op {
	case OpIContains:
		q, _ := c.Value.(string)
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		return fmt.Sprintf(`lower(%s) LIKE %s ESCAPE '\'`, col, r.bind(pattern))
	case OpIExact:
		q, _ := c.Value.(string)
		return fmt.Sprintf("lower(%s) = %s", col, r.bind(strings.ToLower(q)))
	case OpExact:
		return fmt.Sprintf("%s = %s", col, r.bind(c.Value))
	case OpEq:
		return fmt.Sprintf("%s = %s", col, r.bind(c.Value))
	case OpBool:
		b, _ := c.Value.(bool)
		return fmt.Sprintf("%s = %s", col, r.bind(b))
	case OpDateGTE:
		// Bound as-is: time.Time for backends with native timestamps,
		// pre-formatted text for those that store timestamps as strings.
		return fmt.Sprintf("%s >= %s", col, r.bind(c.Value))
	case OpDateLTE:
		return fmt.Sprintf("%s <= %s", col, r.bind(c.Value))
	}
	return ""
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

var safeIdent = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// OrderSQL renders resolved sort keys as an ORDER BY fragment. Keys whose
// field cannot be mapped and is not a bare safe identifier are dropped rather
// than interpolated. Returns "" when nothing survives.
func OrderSQL(orders []Order, cols ColumnMap) string {
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		var col string
		if f, ok := cols(o.Field); ok && f.Exists == "" {
			col = f.Expr
		} else if !ok && safeIdent.MatchString(o.Field) {
			col = o.Field
		} else {
			continue
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	if len(parts) == 0 {
		return ""
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}
