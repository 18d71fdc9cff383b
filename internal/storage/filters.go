package storage

import (
	"alarmtrack/internal/domain"
	"alarmtrack/internal/query"
)

// Search field sets and ordering aliases for each collection. These are the
// single source of truth shared by the in-memory evaluator and the SQL
// backends; field paths allow one relationship hop.
var (
	JobSearchFields = []string{
		"notes",
		"property.street_number",
		"property.street_name",
		"property.suburb",
		"property.state",
		"property.postcode",
		"allocation.first_name",
		"allocation.last_name",
		"allocation.email",
		"issue_type.name",
	}

	PropertySearchFields = []string{
		"street_name",
		"street_number",
		"suburb",
		"unit_number",
		"agency.name",
		"private_owner.first_name",
		"private_owner.last_name",
	}

	TenantSearchFields = []string{"first_name", "last_name", "email", "phone"}

	OwnerSearchFields = []string{"first_name", "last_name", "email", "phone"}

	AgencySearchFields = []string{"name", "email", "suburb"}
)

// JobOrderingAliases maps public ordering keys to field paths. Compound
// aliases sort by each path in turn with the same direction.
var JobOrderingAliases = map[string][]string{
	"property":           {"property.street_name", "property.street_number"},
	"allocation":         {"allocation.first_name"},
	"customer_contacted": {"is_customer_contacted"},
	"agency_private":     {"is_agency"},
}

// PropertyOrderingAliases keeps the legacy keys the clients still send.
var PropertyOrderingAliases = map[string][]string{
	"address": {"street_name", "street_number"},
	"owner":   {"agency.name"},
}

const (
	DefaultJobOrdering      = "-created_at"
	DefaultPropertyOrdering = "street_name"
	DefaultPersonOrdering   = "first_name"
	DefaultAgencyOrdering   = "name"
)

// CompileJobFilter turns the job list parameters into a predicate tree.
// Malformed date bounds are dropped, never surfaced as errors.
func CompileJobFilter(q domain.JobListQuery) query.Pred {
	parts := []query.Pred{query.Search(q.Search, JobSearchFields)}

	if q.Status != "" {
		parts = append(parts, query.Where("status", query.OpExact, q.Status))
	}
	if q.AllocationID != nil {
		parts = append(parts, query.Where("allocation.id", query.OpEq, *q.AllocationID))
	}
	if q.IssueTypeID != nil {
		parts = append(parts, query.Where("issue_type", query.OpEq, *q.IssueTypeID))
	}
	if q.PropertyID != nil {
		parts = append(parts, query.Where("property", query.OpEq, *q.PropertyID))
	}
	if q.TenantID != nil {
		parts = append(parts, query.Where("property.tenant", query.OpEq, *q.TenantID))
	}
	switch q.AgencyPrivate {
	case string(domain.OwnerAgency):
		parts = append(parts, query.Where("is_agency", query.OpBool, true))
	case string(domain.OwnerPrivate):
		parts = append(parts, query.Where("is_private_owner", query.OpBool, true))
	}
	if q.CustomerContacted != nil {
		parts = append(parts, query.Where("is_customer_contacted", query.OpBool, *q.CustomerContacted))
	}
	if from, ok := query.ParseDate(q.CreatedFrom); ok {
		parts = append(parts, query.Where("created_at", query.OpDateGTE, from))
	}
	if to, ok := query.ParseDate(q.CreatedTo); ok {
		parts = append(parts, query.Where("created_at", query.OpDateLTE, query.EndOfDay(to)))
	}
	return query.And(parts...)
}

// CompilePropertyFilter turns the property list parameters into a predicate.
func CompilePropertyFilter(q domain.PropertyListQuery) query.Pred {
	parts := []query.Pred{query.Search(q.Search, PropertySearchFields)}

	if q.Address != "" {
		parts = append(parts, query.Search(q.Address, []string{"unit_number", "street_number", "street_name"}))
	}
	if q.Suburb != "" {
		parts = append(parts, query.Where("suburb", query.OpIExact, q.Suburb))
	}
	if q.State != "" {
		parts = append(parts, query.Where("state", query.OpIExact, q.State))
	}
	if q.Postcode != "" {
		parts = append(parts, query.Where("postcode", query.OpExact, q.Postcode))
	}
	switch q.OwnerType {
	case string(domain.OwnerAgency):
		parts = append(parts, query.Where("is_agency", query.OpBool, true))
	case string(domain.OwnerPrivate):
		parts = append(parts, query.Where("is_agency", query.OpBool, false))
	}
	if q.IsActive != nil {
		parts = append(parts, query.Where("is_active", query.OpBool, *q.IsActive))
	}
	if q.AgencyID != nil {
		parts = append(parts, query.Where("agency", query.OpEq, *q.AgencyID))
	}
	return query.And(parts...)
}

// CompilePersonFilter covers the tenant, owner and agency lists.
func CompilePersonFilter(q domain.PersonListQuery, searchFields []string) query.Pred {
	parts := []query.Pred{query.Search(q.Search, searchFields)}
	if q.IsActive != nil {
		parts = append(parts, query.Where("is_active", query.OpBool, *q.IsActive))
	}
	return query.And(parts...)
}
