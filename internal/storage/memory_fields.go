package storage

import (
	"sort"
	"strings"
	"time"

	"alarmtrack/internal/domain"
	"alarmtrack/internal/query"
)

// Field getters used by the in-memory predicate evaluator and sorter. Each
// resolves a dotted field path for one record, following at most one
// relationship hop through the store's maps. Callers hold the store lock.

func (m *MemoryStore) jobGetter(j domain.ServiceJob) query.Getter {
	return func(field string) []any {
		switch field {
		case "notes":
			return []any{j.Notes}
		case "status":
			return []any{string(j.Status)}
		case "is_agency":
			return []any{j.IsAgency}
		case "is_private_owner":
			return []any{j.IsPrivateOwner}
		case "is_customer_contacted":
			return []any{j.IsCustomerContacted}
		case "is_active":
			return []any{j.IsActive}
		case "is_completed":
			return []any{j.IsCompleted}
		case "is_cancelled":
			return []any{j.IsCancelled}
		case "created_at":
			return []any{j.CreatedAt}
		case "updated_at":
			return []any{j.UpdatedAt}
		case "id":
			return []any{j.ID}
		case "property":
			return []any{j.PropertyID}
		case "issue_type":
			if j.IssueTypeID != nil {
				return []any{*j.IssueTypeID}
			}
			return nil
		case "issue_type.name":
			if j.IssueTypeID != nil {
				if it, ok := m.issueTypes[*j.IssueTypeID]; ok {
					return []any{it.Name}
				}
			}
			return nil
		case "allocation.id":
			return int64Values(j.AllocationIDs)
		case "allocation.first_name", "allocation.last_name", "allocation.email":
			var out []any
			for _, id := range j.AllocationIDs {
				s, ok := m.staff[id]
				if !ok {
					continue
				}
				switch field {
				case "allocation.first_name":
					out = append(out, s.FirstName)
				case "allocation.last_name":
					out = append(out, s.LastName)
				default:
					out = append(out, s.Email)
				}
			}
			return out
		}
		if rest, ok := strings.CutPrefix(field, "property."); ok {
			p, found := m.properties[j.PropertyID]
			if !found {
				return nil
			}
			return m.propertyGetter(p)(rest)
		}
		return nil
	}
}

func (m *MemoryStore) propertyGetter(p domain.Property) query.Getter {
	return func(field string) []any {
		switch field {
		case "unit_number":
			return []any{p.UnitNumber}
		case "street_number":
			return []any{p.StreetNumber}
		case "street_name":
			return []any{p.StreetName}
		case "suburb":
			return []any{p.Suburb}
		case "state":
			return []any{p.State}
		case "postcode":
			return []any{p.Postcode}
		case "is_active":
			return []any{p.IsActive}
		case "is_agency":
			return []any{p.OwnedByAgency()}
		case "created_at":
			return []any{p.CreatedAt}
		case "updated_at":
			return []any{p.UpdatedAt}
		case "id":
			return []any{p.ID}
		case "agency":
			if p.AgencyID != nil {
				return []any{*p.AgencyID}
			}
			return nil
		case "agency.name":
			if p.AgencyID != nil {
				if a, ok := m.agencies[*p.AgencyID]; ok {
					return []any{a.Name}
				}
			}
			return nil
		case "tenant":
			return int64Values(p.TenantIDs)
		case "private_owner.first_name", "private_owner.last_name":
			var out []any
			for _, id := range p.PrivateOwnerIDs {
				o, ok := m.owners[id]
				if !ok {
					continue
				}
				if field == "private_owner.first_name" {
					out = append(out, o.FirstName)
				} else {
					out = append(out, o.LastName)
				}
			}
			return out
		}
		return nil
	}
}

func personGetter(p domain.Person) query.Getter {
	return func(field string) []any {
		switch field {
		case "first_name":
			return []any{p.FirstName}
		case "last_name":
			return []any{p.LastName}
		case "email":
			return []any{p.Email}
		case "phone":
			return []any{p.Phone}
		case "notes":
			return []any{p.Notes}
		case "created_at":
			return []any{p.CreatedAt}
		case "id":
			return []any{p.ID}
		}
		return nil
	}
}

func agencyGetter(a domain.Agency) query.Getter {
	return func(field string) []any {
		switch field {
		case "name":
			return []any{a.Name}
		case "email":
			return []any{a.Email}
		case "suburb":
			return []any{a.Suburb}
		case "is_active":
			return []any{a.IsActive}
		case "created_at":
			return []any{a.CreatedAt}
		case "id":
			return []any{a.ID}
		}
		return nil
	}
}

func int64Values(ids []int64) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}

// sortByOrders sorts items by the resolved ordering keys using the first
// value each getter yields. Records missing a value sort after those that
// have one. Ties fall back to ID order so pagination stays stable.
func sortByOrders[T any](items []T, orders []query.Order, getter func(T) query.Getter) {
	sort.SliceStable(items, func(i, j int) bool {
		gi, gj := getter(items[i]), getter(items[j])
		for _, o := range orders {
			c := compareFirst(gi(o.Field), gj(o.Field))
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return compareFirst(gi("id"), gj("id")) < 0
	})
}

func compareFirst(a, b []any) int {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) == 0 {
		return 1
	}
	if len(b) == 0 {
		return -1
	}
	return compareValues(a[0], b[0])
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0
		}
		return strings.Compare(strings.ToLower(av), strings.ToLower(bv))
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0
		}
		switch {
		case !av && bv:
			return -1
		case av && !bv:
			return 1
		}
		return 0
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0
		}
		return av.Compare(bv)
	}
	return 0
}
