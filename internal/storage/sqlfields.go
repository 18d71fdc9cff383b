package storage

import (
	"strings"

	"alarmtrack/internal/query"
)

// Column maps shared by the SQL backends. They resolve predicate field
// paths to column expressions for a fixed set of table aliases; to-many
// hops render as EXISTS subqueries so list pages never need DISTINCT.
// The SQL here is deliberately dialect-neutral.

const (
	// JobBaseSQL and PropertyBaseSQL are the FROM clauses the list
	// queries and the column maps agree on.
	JobBaseSQL      = "FROM jobs j JOIN properties p ON p.id = j.property_id LEFT JOIN issue_types it ON it.id = j.issue_type_id"
	PropertyBaseSQL = "FROM properties p LEFT JOIN agencies a ON a.id = p.agency_id"

	allocExists      = "EXISTS (SELECT 1 FROM job_allocations ja WHERE ja.job_id = j.id AND %s)"
	allocStaffExists = "EXISTS (SELECT 1 FROM job_allocations ja JOIN staff s ON s.id = ja.staff_id WHERE ja.job_id = j.id AND %s)"
	jobTenantExists  = "EXISTS (SELECT 1 FROM property_tenants pt WHERE pt.property_id = j.property_id AND %s)"
	propTenantExists = "EXISTS (SELECT 1 FROM property_tenants pt WHERE pt.property_id = p.id AND %s)"
	propOwnerExists  = "EXISTS (SELECT 1 FROM property_owners po JOIN private_owners o ON o.id = po.owner_id WHERE po.property_id = p.id AND %s)"
)

// JobColumn maps job predicate fields against JobBaseSQL.
func JobColumn(field string) (query.SQLField, bool) {
	switch field {
	case "notes", "status", "created_at", "updated_at", "id",
		"is_agency", "is_private_owner", "is_customer_contacted",
		"is_active", "is_completed", "is_cancelled":
		return query.SQLField{Expr: "j." + field}, true
	case "property":
		return query.SQLField{Expr: "j.property_id"}, true
	case "issue_type":
		return query.SQLField{Expr: "j.issue_type_id"}, true
	case "issue_type.name":
		return query.SQLField{Expr: "it.name"}, true
	case "allocation.id":
		return query.SQLField{Expr: "ja.staff_id", Exists: allocExists}, true
	case "allocation.first_name":
		return query.SQLField{Expr: "s.first_name", Exists: allocStaffExists}, true
	case "allocation.last_name":
		return query.SQLField{Expr: "s.last_name", Exists: allocStaffExists}, true
	case "allocation.email":
		return query.SQLField{Expr: "s.email", Exists: allocStaffExists}, true
	case "property.tenant":
		return query.SQLField{Expr: "pt.tenant_id", Exists: jobTenantExists}, true
	}
	if rest, ok := strings.CutPrefix(field, "property."); ok {
		switch rest {
		case "unit_number", "street_number", "street_name", "suburb",
			"state", "postcode", "is_active", "created_at", "updated_at", "id":
			return query.SQLField{Expr: "p." + rest}, true
		}
	}
	return query.SQLField{}, false
}

// JobOrderColumn extends JobColumn with scalar renderings of the
// to-many hops the ordering aliases reach for.
func JobOrderColumn(field string) (query.SQLField, bool) {
	if field == "allocation.first_name" {
		return query.SQLField{Expr: "(SELECT min(s.first_name) FROM job_allocations ja JOIN staff s ON s.id = ja.staff_id WHERE ja.job_id = j.id)"}, true
	}
	f, ok := JobColumn(field)
	if !ok || f.Exists != "" {
		return query.SQLField{}, false
	}
	return f, true
}

// PropertyColumn maps property predicate fields against PropertyBaseSQL.
func PropertyColumn(field string) (query.SQLField, bool) {
	switch field {
	case "unit_number", "street_number", "street_name", "suburb",
		"state", "postcode", "is_active", "created_at", "updated_at", "id":
		return query.SQLField{Expr: "p." + field}, true
	case "is_agency":
		return query.SQLField{Expr: "(p.agency_id IS NOT NULL)"}, true
	case "agency":
		return query.SQLField{Expr: "p.agency_id"}, true
	case "agency.name":
		return query.SQLField{Expr: "a.name"}, true
	case "tenant":
		return query.SQLField{Expr: "pt.tenant_id", Exists: propTenantExists}, true
	case "private_owner.first_name":
		return query.SQLField{Expr: "o.first_name", Exists: propOwnerExists}, true
	case "private_owner.last_name":
		return query.SQLField{Expr: "o.last_name", Exists: propOwnerExists}, true
	}
	return query.SQLField{}, false
}

// PersonColumn maps the tenant and private-owner list fields. Person
// tables have no is_active column, so that filter resolves to a
// never-matching clause, same as the memory evaluator.
func PersonColumn(field string) (query.SQLField, bool) {
	switch field {
	case "first_name", "last_name", "email", "phone", "notes", "created_at", "updated_at", "id":
		return query.SQLField{Expr: field}, true
	}
	return query.SQLField{}, false
}

// AgencyColumn maps the agency list fields.
func AgencyColumn(field string) (query.SQLField, bool) {
	switch field {
	case "name", "email", "phone", "suburb", "state", "postcode",
		"is_active", "created_at", "updated_at", "id":
		return query.SQLField{Expr: field}, true
	}
	return query.SQLField{}, false
}
