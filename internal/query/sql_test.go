package query

import (
	"strings"
	"testing"
)

func jobCols(field string) (SQLField, bool) {
	switch field {
	case "notes":
		return SQLField{Expr: "j.notes"}, true
	case "property.street_name":
		return SQLField{Expr: "p.street_name"}, true
	case "is_agency":
		return SQLField{Expr: "j.is_agency"}, true
	case "allocation.first_name":
		return SQLField{
			Expr:   "u.first_name",
			Exists: "EXISTS (SELECT 1 FROM job_allocations ja JOIN users u ON u.id = ja.user_id WHERE ja.job_id = j.id AND %s)",
		}, true
	}
	return SQLField{}, false
}

func TestToSQLSearch(t *testing.T) {
	p := Search("queen fault", []string{"notes", "property.street_name"})
	clause, args := ToSQL(p, jobCols, DialectPostgres, 0)

	if !strings.Contains(clause, "$1") || !strings.Contains(clause, "$4") {
		t.Fatalf("expected four numbered placeholders: %s", clause)
	}
	if len(args) != 4 {
		t.Fatalf("args: %v", args)
	}
	if args[0] != "%queen%" || args[2] != "%fault%" {
		t.Fatalf("patterns should be lowercased and wrapped: %v", args)
	}
	if !strings.Contains(clause, " AND ") || !strings.Contains(clause, " OR ") {
		t.Fatalf("terms AND together, fields OR within a term: %s", clause)
	}
}

func TestToSQLExistsHop(t *testing.T) {
	p := Where("allocation.first_name", OpIContains, "alice")
	clause, args := ToSQL(p, jobCols, DialectSQLite, 0)
	if !strings.HasPrefix(clause, "EXISTS (") {
		t.Fatalf("to-many hop should render as EXISTS: %s", clause)
	}
	if !strings.Contains(clause, "lower(u.first_name) LIKE ?") {
		t.Fatalf("comparison should land inside the subquery: %s", clause)
	}
	if len(args) != 1 || args[0] != "%alice%" {
		t.Fatalf("args: %v", args)
	}
}

func TestToSQLSQLitePlaceholders(t *testing.T) {
	p := And(Where("is_agency", OpBool, true), Where("notes", OpIContains, "10%"))
	clause, args := ToSQL(p, jobCols, DialectSQLite, 0)
	if strings.Contains(clause, "$") {
		t.Fatalf("sqlite uses ? placeholders: %s", clause)
	}
	if len(args) != 2 || args[1] != `%10\%%` {
		t.Fatalf("LIKE metacharacters must be escaped: %v", args)
	}
}

func TestToSQLUnknownField(t *testing.T) {
	clause, args := ToSQL(Where("bogus", OpExact, "x"), jobCols, DialectSQLite, 0)
	if clause != "1=0" || len(args) != 0 {
		t.Fatalf("unresolvable field should never match: %s %v", clause, args)
	}
	clause, _ = ToSQL(Pred{}, jobCols, DialectSQLite, 0)
	if clause != "1=1" {
		t.Fatalf("empty predicate matches everything: %s", clause)
	}
}

func TestOrderSQL(t *testing.T) {
	orders := []Order{
		{Field: "property.street_name", Desc: true},
		{Field: "property.street_number", Desc: true},
	}
	cols := func(f string) (SQLField, bool) {
		switch f {
		case "property.street_name":
			return SQLField{Expr: "p.street_name"}, true
		case "property.street_number":
			return SQLField{Expr: "p.street_number"}, true
		}
		return SQLField{}, false
	}
	got := OrderSQL(orders, cols)
	want := "ORDER BY p.street_name DESC, p.street_number DESC"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	// Hostile raw keys are dropped, bare identifiers pass through.
	got = OrderSQL([]Order{{Field: "id; DROP TABLE jobs"}, {Field: "created_at"}}, cols)
	if got != "ORDER BY created_at ASC" {
		t.Fatalf("got %q", got)
	}
	if OrderSQL(nil, cols) != "" {
		t.Fatalf("no orders renders nothing")
	}
}
