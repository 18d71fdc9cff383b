package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"alarmtrack/internal/domain"
	"alarmtrack/internal/query"
)

// MemoryStore is an in-memory implementation for quick start and tests.
// Every mutation runs under one lock, so multi-step changes such as
// ownership swaps are atomic.
type MemoryStore struct {
	mu sync.RWMutex

	jobs       map[int64]domain.ServiceJob
	jobUpdates map[int64]domain.JobUpdate
	issueTypes map[int64]domain.IssueType
	properties map[int64]domain.Property
	agencies   map[int64]domain.Agency
	managers   map[int64]domain.PropertyManager
	owners     map[int64]domain.PrivateOwner
	tenants    map[int64]domain.Tenant
	staff      map[int64]domain.Staff

	nextJob       int64
	nextUpdate    int64
	nextIssueType int64
	nextProperty  int64
	nextAgency    int64
	nextManager   int64
	nextOwner     int64
	nextTenant    int64
	nextStaff     int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:       make(map[int64]domain.ServiceJob),
		jobUpdates: make(map[int64]domain.JobUpdate),
		issueTypes: make(map[int64]domain.IssueType),
		properties: make(map[int64]domain.Property),
		agencies:   make(map[int64]domain.Agency),
		managers:   make(map[int64]domain.PropertyManager),
		owners:     make(map[int64]domain.PrivateOwner),
		tenants:    make(map[int64]domain.Tenant),
		staff:      make(map[int64]domain.Staff),
		nextJob:    1, nextUpdate: 1, nextIssueType: 1, nextProperty: 1,
		nextAgency: 1, nextManager: 1, nextOwner: 1, nextTenant: 1, nextStaff: 1,
	}
}

func newUID() string { return uuid.NewString() }

func copyIDs(src []int64) []int64 {
	if src == nil {
		return nil
	}
	return append([]int64(nil), src...)
}

// Service jobs

func (m *MemoryStore) ListJobs(ctx context.Context, q domain.JobListQuery) ([]domain.ServiceJob, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pred := CompileJobFilter(q)
	matched := make([]domain.ServiceJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		if pred.Eval(m.jobGetter(j)) {
			matched = append(matched, j)
		}
	}
	orders := query.ResolveOrdering(q.Ordering, JobOrderingAliases, DefaultJobOrdering)
	sortByOrders(matched, orders, m.jobGetter)

	total := len(matched)
	start, end := query.Window(q.Page, pageSizeOr(q.PageSize), total)
	return matched[start:end], total, nil
}

func pageSizeOr(size int) int {
	if size < 1 {
		return query.DefaultPageSize
	}
	return size
}

func (m *MemoryStore) CreateJob(ctx context.Context, in domain.CreateJob) (domain.ServiceJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.properties[in.PropertyID]
	if !ok {
		return domain.ServiceJob{}, FieldErrorf("property_id", "property %d does not exist", in.PropertyID)
	}
	status := in.Status
	if status == "" {
		status = domain.StatusNew
	}
	if !status.Valid() {
		return domain.ServiceJob{}, FieldErrorf("status", "unknown status %q", status)
	}
	if in.IssueTypeID != nil {
		if _, ok := m.issueTypes[*in.IssueTypeID]; !ok {
			return domain.ServiceJob{}, FieldErrorf("issue_type_id", "issue type %d does not exist", *in.IssueTypeID)
		}
	}
	for _, id := range in.AllocationIDs {
		if _, ok := m.staff[id]; !ok {
			return domain.ServiceJob{}, FieldErrorf("allocation_ids", "user %d does not exist", id)
		}
	}
	tenants := copyIDs(in.TenantIDs)
	if tenants == nil {
		// Snapshot the property's tenants at creation time.
		tenants = copyIDs(p.TenantIDs)
	}

	id := m.nextJob
	m.nextJob++
	now := time.Now().UTC()
	var privateOwnerID *int64
	if len(p.PrivateOwnerIDs) > 0 {
		first := p.PrivateOwnerIDs[0]
		privateOwnerID = &first
	}
	j := domain.ServiceJob{
		ID:                  id,
		UID:                 newUID(),
		Status:              status,
		Notes:               in.Notes,
		PropertyID:          p.ID,
		IssueTypeID:         in.IssueTypeID,
		AgencyID:            p.AgencyID,
		PrivateOwnerID:      privateOwnerID,
		TenantIDs:           tenants,
		AllocationIDs:       copyIDs(in.AllocationIDs),
		IsCustomerContacted: in.IsCustomerContacted,
		IsActive:            true,
		IsAgency:            p.OwnedByAgency(),
		IsPrivateOwner:      !p.OwnedByAgency(),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	j.SyncCompletionFlags()
	m.jobs[id] = j
	return j, nil
}

func (m *MemoryStore) GetJob(ctx context.Context, id int64) (domain.ServiceJob, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	return j, ok, nil
}

func (m *MemoryStore) UpdateJob(ctx context.Context, id int64, update domain.UpdateJob) (domain.ServiceJob, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ServiceJob{}, false, nil
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return domain.ServiceJob{}, false, FieldErrorf("status", "unknown status %q", *update.Status)
		}
		j.Status = *update.Status
	}
	if update.Notes != nil {
		j.Notes = *update.Notes
	}
	if update.IssueTypeID != nil {
		if _, ok := m.issueTypes[*update.IssueTypeID]; !ok {
			return domain.ServiceJob{}, false, FieldErrorf("issue_type_id", "issue type %d does not exist", *update.IssueTypeID)
		}
		j.IssueTypeID = update.IssueTypeID
	}
	if update.AllocationIDs != nil {
		for _, sid := range *update.AllocationIDs {
			if _, ok := m.staff[sid]; !ok {
				return domain.ServiceJob{}, false, FieldErrorf("allocation_ids", "user %d does not exist", sid)
			}
		}
		j.AllocationIDs = copyIDs(*update.AllocationIDs)
	}
	if update.TenantIDs != nil {
		for _, tid := range *update.TenantIDs {
			if _, ok := m.tenants[tid]; !ok {
				return domain.ServiceJob{}, false, FieldErrorf("tenant_ids", "tenant %d does not exist", tid)
			}
		}
		j.TenantIDs = copyIDs(*update.TenantIDs)
	}
	if update.IsCustomerContacted != nil {
		j.IsCustomerContacted = *update.IsCustomerContacted
	}
	if update.IsActive != nil {
		j.IsActive = *update.IsActive
	}
	j.SyncCompletionFlags()
	j.UpdatedAt = time.Now().UTC()
	m.jobs[id] = j
	return j, true, nil
}

func (m *MemoryStore) ListJobUpdates(ctx context.Context, jobID int64) ([]domain.JobUpdate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.jobs[jobID]; !ok {
		return nil, fmt.Errorf("job %d: %w", jobID, ErrNotFound)
	}
	var out []domain.JobUpdate
	for _, u := range m.jobUpdates {
		if u.JobID == jobID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) AppendJobUpdate(ctx context.Context, in domain.CreateJobUpdate, authorID *int64) (domain.JobUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[in.JobID]; !ok {
		return domain.JobUpdate{}, fmt.Errorf("job %d: %w", in.JobID, ErrNotFound)
	}
	if !in.Status.Valid() {
		return domain.JobUpdate{}, FieldErrorf("status", "unknown status %q", in.Status)
	}
	id := m.nextUpdate
	m.nextUpdate++
	u := domain.JobUpdate{
		ID:        id,
		UID:       newUID(),
		JobID:     in.JobID,
		Status:    in.Status,
		Note:      in.Note,
		AuthorID:  authorID,
		CreatedAt: time.Now().UTC(),
	}
	m.jobUpdates[id] = u
	return u, nil
}

// Issue types

func (m *MemoryStore) ListIssueTypes(ctx context.Context, activeOnly bool) ([]domain.IssueType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.IssueType, 0, len(m.issueTypes))
	for _, it := range m.issueTypes {
		if activeOnly && !it.IsActive {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) CreateIssueType(ctx context.Context, in domain.CreateIssueType) (domain.IssueType, error) {
	if strings.TrimSpace(in.Name) == "" {
		return domain.IssueType{}, FieldErrorf("name", "Name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.issueTypes {
		if strings.EqualFold(it.Name, in.Name) {
			return domain.IssueType{}, fmt.Errorf("issue type %q exists: %w", in.Name, ErrConflict)
		}
	}
	id := m.nextIssueType
	m.nextIssueType++
	now := time.Now().UTC()
	it := domain.IssueType{
		ID:          id,
		UID:         newUID(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.issueTypes[id] = it
	return it, nil
}

func (m *MemoryStore) GetIssueType(ctx context.Context, id int64) (domain.IssueType, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.issueTypes[id]
	return it, ok, nil
}

func (m *MemoryStore) UpdateIssueType(ctx context.Context, id int64, update domain.UpdateIssueType) (domain.IssueType, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.issueTypes[id]
	if !ok {
		return domain.IssueType{}, false, nil
	}
	if update.Name != nil {
		if strings.TrimSpace(*update.Name) == "" {
			return domain.IssueType{}, false, FieldErrorf("name", "Name is required")
		}
		it.Name = strings.TrimSpace(*update.Name)
	}
	if update.Description != nil {
		it.Description = *update.Description
	}
	if update.IsActive != nil {
		it.IsActive = *update.IsActive
	}
	it.UpdatedAt = time.Now().UTC()
	m.issueTypes[id] = it
	return it, true, nil
}

// Properties

func (m *MemoryStore) ListProperties(ctx context.Context, q domain.PropertyListQuery) ([]domain.Property, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pred := CompilePropertyFilter(q)
	matched := make([]domain.Property, 0, len(m.properties))
	for _, p := range m.properties {
		if pred.Eval(m.propertyGetter(p)) {
			matched = append(matched, p)
		}
	}
	orders := query.ResolveOrdering(q.Ordering, PropertyOrderingAliases, DefaultPropertyOrdering)
	sortByOrders(matched, orders, m.propertyGetter)

	total := len(matched)
	start, end := query.Window(q.Page, pageSizeOr(q.PageSize), total)
	return matched[start:end], total, nil
}

// ValidateAddress checks the required address fields. Shared by every
// backend so validation messages stay identical.
func ValidateAddress(number, street, suburb, state, postcode string) error {
	switch {
	case strings.TrimSpace(number) == "":
		return FieldErrorf("street_number", "Street number is required")
	case strings.TrimSpace(street) == "":
		return FieldErrorf("street_name", "Street name is required")
	case strings.TrimSpace(suburb) == "":
		return FieldErrorf("suburb", "Suburb is required")
	case strings.TrimSpace(state) == "":
		return FieldErrorf("state", "State is required")
	case strings.TrimSpace(postcode) == "":
		return FieldErrorf("postcode", "Postcode is required")
	}
	return nil
}

func (m *MemoryStore) CreateProperty(ctx context.Context, in domain.CreateProperty) (domain.Property, error) {
	if err := ValidateAddress(in.StreetNumber, in.StreetName, in.Suburb, in.State, in.Postcode); err != nil {
		return domain.Property{}, err
	}
	if in.AgencyID != nil && len(in.PrivateOwners) > 0 {
		return domain.Property{}, fmt.Errorf("property cannot have both an agency and private owners: %w", ErrValidation)
	}
	if in.AgencyID == nil && len(in.PrivateOwners) == 0 {
		return domain.Property{}, fmt.Errorf("property requires an agency or at least one private owner: %w", ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if in.AgencyID != nil {
		if _, ok := m.agencies[*in.AgencyID]; !ok {
			return domain.Property{}, FieldErrorf("agency_id", "agency %d does not exist", *in.AgencyID)
		}
	}

	var ownerIDs []int64
	for _, o := range in.PrivateOwners {
		owner, err := m.createOwnerLocked(o)
		if err != nil {
			return domain.Property{}, err
		}
		ownerIDs = append(ownerIDs, owner.ID)
	}
	var tenantIDs []int64
	for _, t := range in.Tenants {
		tenant, err := m.createTenantLocked(t)
		if err != nil {
			return domain.Property{}, err
		}
		tenantIDs = append(tenantIDs, tenant.ID)
	}

	id := m.nextProperty
	m.nextProperty++
	now := time.Now().UTC()
	p := domain.Property{
		ID:              id,
		UID:             newUID(),
		UnitNumber:      strings.TrimSpace(in.UnitNumber),
		StreetNumber:    strings.TrimSpace(in.StreetNumber),
		StreetName:      strings.TrimSpace(in.StreetName),
		Suburb:          strings.TrimSpace(in.Suburb),
		State:           strings.TrimSpace(in.State),
		Postcode:        strings.TrimSpace(in.Postcode),
		Country:         in.Country,
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
		AgencyID:        in.AgencyID,
		PrivateOwnerIDs: ownerIDs,
		TenantIDs:       tenantIDs,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.properties[id] = p
	return p, nil
}

func (m *MemoryStore) GetProperty(ctx context.Context, id int64) (domain.Property, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.properties[id]
	return p, ok, nil
}

func (m *MemoryStore) FindPropertyByAddress(ctx context.Context, unit, number, street, suburb string) (domain.Property, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.properties {
		if strings.EqualFold(p.UnitNumber, strings.TrimSpace(unit)) &&
			strings.EqualFold(p.StreetNumber, strings.TrimSpace(number)) &&
			strings.EqualFold(p.StreetName, strings.TrimSpace(street)) &&
			strings.EqualFold(p.Suburb, strings.TrimSpace(suburb)) {
			return p, true, nil
		}
	}
	return domain.Property{}, false, nil
}

func (m *MemoryStore) UpdateProperty(ctx context.Context, id int64, update domain.UpdateProperty) (domain.Property, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[id]
	if !ok {
		return domain.Property{}, false, nil
	}

	if update.UnitNumber != nil {
		p.UnitNumber = strings.TrimSpace(*update.UnitNumber)
	}
	if update.StreetNumber != nil {
		p.StreetNumber = strings.TrimSpace(*update.StreetNumber)
	}
	if update.StreetName != nil {
		p.StreetName = strings.TrimSpace(*update.StreetName)
	}
	if update.Suburb != nil {
		p.Suburb = strings.TrimSpace(*update.Suburb)
	}
	if update.State != nil {
		p.State = strings.TrimSpace(*update.State)
	}
	if update.Postcode != nil {
		p.Postcode = strings.TrimSpace(*update.Postcode)
	}
	if update.Country != nil {
		p.Country = *update.Country
	}
	if update.Latitude != nil {
		p.Latitude = update.Latitude
	}
	if update.Longitude != nil {
		p.Longitude = update.Longitude
	}
	if update.IsActive != nil {
		p.IsActive = *update.IsActive
	}
	if err := ValidateAddress(p.StreetNumber, p.StreetName, p.Suburb, p.State, p.Postcode); err != nil {
		return domain.Property{}, false, err
	}

	// Ownership replacement. Setting an agency clears private owners and
	// vice versa; the exactly-one-owner rule is re-checked on the result.
	if update.AgencyID != nil {
		if _, ok := m.agencies[*update.AgencyID]; !ok {
			return domain.Property{}, false, FieldErrorf("agency_id", "agency %d does not exist", *update.AgencyID)
		}
		p.AgencyID = update.AgencyID
		m.releaseOwnersLocked(&p)
	}
	if update.PrivateOwners != nil {
		m.releaseOwnersLocked(&p)
		for _, in := range *update.PrivateOwners {
			owner, err := m.createOwnerLocked(in)
			if err != nil {
				return domain.Property{}, false, err
			}
			p.PrivateOwnerIDs = append(p.PrivateOwnerIDs, owner.ID)
		}
		p.AgencyID = nil
	}
	if update.ClearAgency {
		p.AgencyID = nil
	}
	if p.AgencyID == nil && len(p.PrivateOwnerIDs) == 0 {
		return domain.Property{}, false, fmt.Errorf("property requires an agency or at least one private owner: %w", ErrValidation)
	}
	if p.AgencyID != nil && len(p.PrivateOwnerIDs) > 0 {
		return domain.Property{}, false, fmt.Errorf("property cannot have both an agency and private owners: %w", ErrValidation)
	}

	if update.Tenants != nil {
		old := p.TenantIDs
		p.TenantIDs = nil
		for _, in := range *update.Tenants {
			tenant, err := m.createTenantLocked(in)
			if err != nil {
				return domain.Property{}, false, err
			}
			p.TenantIDs = append(p.TenantIDs, tenant.ID)
		}
		m.properties[id] = p
		for _, tid := range old {
			m.deleteTenantIfOrphanLocked(tid)
		}
	}

	p.UpdatedAt = time.Now().UTC()
	m.properties[id] = p
	return p, true, nil
}

func (m *MemoryStore) DeleteProperty(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[id]
	if !ok {
		return false, nil
	}
	for _, j := range m.jobs {
		if j.PropertyID == id {
			return false, fmt.Errorf("property has service jobs: %w", ErrConflict)
		}
	}
	owners := p.PrivateOwnerIDs
	tenants := p.TenantIDs
	delete(m.properties, id)
	for _, oid := range owners {
		m.deleteOwnerIfOrphanLocked(oid)
	}
	for _, tid := range tenants {
		m.deleteTenantIfOrphanLocked(tid)
	}
	return true, nil
}

// releaseOwnersLocked detaches all private owners from p, deleting any that
// no other property references.
func (m *MemoryStore) releaseOwnersLocked(p *domain.Property) {
	old := p.PrivateOwnerIDs
	p.PrivateOwnerIDs = nil
	m.properties[p.ID] = *p
	for _, oid := range old {
		m.deleteOwnerIfOrphanLocked(oid)
	}
}

func (m *MemoryStore) deleteOwnerIfOrphanLocked(id int64) {
	for _, p := range m.properties {
		for _, oid := range p.PrivateOwnerIDs {
			if oid == id {
				return
			}
		}
	}
	delete(m.owners, id)
}

func (m *MemoryStore) deleteTenantIfOrphanLocked(id int64) {
	for _, p := range m.properties {
		for _, tid := range p.TenantIDs {
			if tid == id {
				return
			}
		}
	}
	delete(m.tenants, id)
	// Drop dangling snapshot references from jobs.
	for jid, j := range m.jobs {
		changed := false
		kept := j.TenantIDs[:0]
		for _, tid := range j.TenantIDs {
			if tid == id {
				changed = true
				continue
			}
			kept = append(kept, tid)
		}
		if changed {
			j.TenantIDs = kept
			m.jobs[jid] = j
		}
	}
}

// ValidatePerson checks the required contact fields for owners, tenants
// and managers.
func ValidatePerson(in domain.PersonInput) error {
	if strings.TrimSpace(in.FirstName) == "" {
		return FieldErrorf("first_name", "First name is required")
	}
	return nil
}

func (m *MemoryStore) createOwnerLocked(in domain.PersonInput) (domain.PrivateOwner, error) {
	if err := ValidatePerson(in); err != nil {
		return domain.PrivateOwner{}, err
	}
	id := m.nextOwner
	m.nextOwner++
	now := time.Now().UTC()
	o := domain.PrivateOwner{Person: domain.Person{
		ID: id, UID: newUID(),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Notes:     in.Notes,
		CreatedAt: now, UpdatedAt: now,
	}}
	m.owners[id] = o
	return o, nil
}

func (m *MemoryStore) createTenantLocked(in domain.PersonInput) (domain.Tenant, error) {
	if err := ValidatePerson(in); err != nil {
		return domain.Tenant{}, err
	}
	id := m.nextTenant
	m.nextTenant++
	now := time.Now().UTC()
	t := domain.Tenant{Person: domain.Person{
		ID: id, UID: newUID(),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Notes:     in.Notes,
		CreatedAt: now, UpdatedAt: now,
	}}
	m.tenants[id] = t
	return t, nil
}

// Tenants

func (m *MemoryStore) ListTenants(ctx context.Context, q domain.PersonListQuery) ([]domain.Tenant, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pred := CompilePersonFilter(q, TenantSearchFields)
	matched := make([]domain.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		if pred.Eval(personGetter(t.Person)) {
			matched = append(matched, t)
		}
	}
	orders := query.ResolveOrdering(q.Ordering, nil, DefaultPersonOrdering)
	sortByOrders(matched, orders, func(t domain.Tenant) query.Getter { return personGetter(t.Person) })
	total := len(matched)
	start, end := query.Window(q.Page, pageSizeOr(q.PageSize), total)
	return matched[start:end], total, nil
}

func (m *MemoryStore) AddTenant(ctx context.Context, propertyID int64, in domain.PersonInput) (domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[propertyID]
	if !ok {
		return domain.Tenant{}, fmt.Errorf("property %d: %w", propertyID, ErrNotFound)
	}
	t, err := m.createTenantLocked(in)
	if err != nil {
		return domain.Tenant{}, err
	}
	p.TenantIDs = append(p.TenantIDs, t.ID)
	p.UpdatedAt = time.Now().UTC()
	m.properties[propertyID] = p
	return t, nil
}

func (m *MemoryStore) RemoveTenant(ctx context.Context, propertyID, tenantID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[propertyID]
	if !ok {
		return false, nil
	}
	found := false
	kept := p.TenantIDs[:0]
	for _, tid := range p.TenantIDs {
		if tid == tenantID {
			found = true
			continue
		}
		kept = append(kept, tid)
	}
	if !found {
		return false, nil
	}
	p.TenantIDs = kept
	p.UpdatedAt = time.Now().UTC()
	m.properties[propertyID] = p
	m.deleteTenantIfOrphanLocked(tenantID)
	return true, nil
}

func (m *MemoryStore) UpdateTenant(ctx context.Context, id int64, update domain.UpdatePerson) (domain.Tenant, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, false, nil
	}
	if err := ApplyPersonUpdate(&t.Person, update); err != nil {
		return domain.Tenant{}, false, err
	}
	m.tenants[id] = t
	return t, true, nil
}

func (m *MemoryStore) GetTenant(ctx context.Context, id int64) (domain.Tenant, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	return t, ok, nil
}

// ApplyPersonUpdate applies a partial contact update in place and stamps
// UpdatedAt.
func ApplyPersonUpdate(p *domain.Person, update domain.UpdatePerson) error {
	if update.FirstName != nil {
		if strings.TrimSpace(*update.FirstName) == "" {
			return FieldErrorf("first_name", "First name is required")
		}
		p.FirstName = strings.TrimSpace(*update.FirstName)
	}
	if update.LastName != nil {
		p.LastName = strings.TrimSpace(*update.LastName)
	}
	if update.Email != nil {
		p.Email = strings.TrimSpace(*update.Email)
	}
	if update.Phone != nil {
		p.Phone = strings.TrimSpace(*update.Phone)
	}
	if update.Notes != nil {
		p.Notes = *update.Notes
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Private owners

func (m *MemoryStore) ListPrivateOwners(ctx context.Context, q domain.PersonListQuery) ([]domain.PrivateOwner, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pred := CompilePersonFilter(q, OwnerSearchFields)
	matched := make([]domain.PrivateOwner, 0, len(m.owners))
	for _, o := range m.owners {
		if pred.Eval(personGetter(o.Person)) {
			matched = append(matched, o)
		}
	}
	orders := query.ResolveOrdering(q.Ordering, nil, DefaultPersonOrdering)
	sortByOrders(matched, orders, func(o domain.PrivateOwner) query.Getter { return personGetter(o.Person) })
	total := len(matched)
	start, end := query.Window(q.Page, pageSizeOr(q.PageSize), total)
	return matched[start:end], total, nil
}

func (m *MemoryStore) AddPrivateOwner(ctx context.Context, propertyID int64, in domain.PersonInput) (domain.PrivateOwner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[propertyID]
	if !ok {
		return domain.PrivateOwner{}, fmt.Errorf("property %d: %w", propertyID, ErrNotFound)
	}
	if p.OwnedByAgency() {
		return domain.PrivateOwner{}, fmt.Errorf("agency-managed property cannot have private owners: %w", ErrValidation)
	}
	o, err := m.createOwnerLocked(in)
	if err != nil {
		return domain.PrivateOwner{}, err
	}
	p.PrivateOwnerIDs = append(p.PrivateOwnerIDs, o.ID)
	p.UpdatedAt = time.Now().UTC()
	m.properties[propertyID] = p
	return o, nil
}

func (m *MemoryStore) RemovePrivateOwner(ctx context.Context, propertyID, ownerID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[propertyID]
	if !ok {
		return false, nil
	}
	found := false
	kept := p.PrivateOwnerIDs[:0]
	for _, oid := range p.PrivateOwnerIDs {
		if oid == ownerID {
			found = true
			continue
		}
		kept = append(kept, oid)
	}
	if !found {
		return false, nil
	}
	if len(kept) == 0 && p.AgencyID == nil {
		return false, fmt.Errorf("property must retain at least one owner: %w", ErrValidation)
	}
	p.PrivateOwnerIDs = kept
	p.UpdatedAt = time.Now().UTC()
	m.properties[propertyID] = p
	m.deleteOwnerIfOrphanLocked(ownerID)
	return true, nil
}

func (m *MemoryStore) GetPrivateOwner(ctx context.Context, id int64) (domain.PrivateOwner, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.owners[id]
	return o, ok, nil
}

func (m *MemoryStore) UpdatePrivateOwner(ctx context.Context, id int64, update domain.UpdatePerson) (domain.PrivateOwner, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.owners[id]
	if !ok {
		return domain.PrivateOwner{}, false, nil
	}
	if err := ApplyPersonUpdate(&o.Person, update); err != nil {
		return domain.PrivateOwner{}, false, err
	}
	m.owners[id] = o
	return o, true, nil
}

func (m *MemoryStore) SetPropertyAgency(ctx context.Context, propertyID int64, agencyID *int64) (domain.Property, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[propertyID]
	if !ok {
		return domain.Property{}, false, nil
	}
	if agencyID == nil {
		if len(p.PrivateOwnerIDs) == 0 {
			return domain.Property{}, false, fmt.Errorf("property must retain at least one owner: %w", ErrValidation)
		}
		p.AgencyID = nil
	} else {
		if _, ok := m.agencies[*agencyID]; !ok {
			return domain.Property{}, false, FieldErrorf("agency_id", "agency %d does not exist", *agencyID)
		}
		p.AgencyID = agencyID
		m.releaseOwnersLocked(&p)
	}
	p.UpdatedAt = time.Now().UTC()
	m.properties[propertyID] = p
	return p, true, nil
}

// Agencies

func (m *MemoryStore) ListAgencies(ctx context.Context, q domain.PersonListQuery) ([]domain.Agency, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pred := CompilePersonFilter(q, AgencySearchFields)
	matched := make([]domain.Agency, 0, len(m.agencies))
	for _, a := range m.agencies {
		if pred.Eval(agencyGetter(a)) {
			matched = append(matched, a)
		}
	}
	orders := query.ResolveOrdering(q.Ordering, nil, DefaultAgencyOrdering)
	sortByOrders(matched, orders, agencyGetter)
	total := len(matched)
	start, end := query.Window(q.Page, pageSizeOr(q.PageSize), total)
	return matched[start:end], total, nil
}

func (m *MemoryStore) CreateAgency(ctx context.Context, in domain.CreateAgency) (domain.Agency, error) {
	if strings.TrimSpace(in.Name) == "" {
		return domain.Agency{}, FieldErrorf("name", "Name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextAgency
	m.nextAgency++
	now := time.Now().UTC()
	a := domain.Agency{
		ID:           id,
		UID:          newUID(),
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		Phone:        strings.TrimSpace(in.Phone),
		StreetNumber: in.StreetNumber,
		StreetName:   in.StreetName,
		Suburb:       in.Suburb,
		State:        in.State,
		Postcode:     in.Postcode,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.agencies[id] = a
	return a, nil
}

func (m *MemoryStore) GetAgency(ctx context.Context, id int64) (domain.Agency, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agencies[id]
	return a, ok, nil
}

func (m *MemoryStore) UpdateAgency(ctx context.Context, id int64, update domain.UpdateAgency) (domain.Agency, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agencies[id]
	if !ok {
		return domain.Agency{}, false, nil
	}
	if update.Name != nil {
		if strings.TrimSpace(*update.Name) == "" {
			return domain.Agency{}, false, FieldErrorf("name", "Name is required")
		}
		a.Name = strings.TrimSpace(*update.Name)
	}
	if update.Email != nil {
		a.Email = strings.TrimSpace(*update.Email)
	}
	if update.Phone != nil {
		a.Phone = strings.TrimSpace(*update.Phone)
	}
	if update.StreetNumber != nil {
		a.StreetNumber = *update.StreetNumber
	}
	if update.StreetName != nil {
		a.StreetName = *update.StreetName
	}
	if update.Suburb != nil {
		a.Suburb = *update.Suburb
	}
	if update.State != nil {
		a.State = *update.State
	}
	if update.Postcode != nil {
		a.Postcode = *update.Postcode
	}
	if update.Latitude != nil {
		a.Latitude = update.Latitude
	}
	if update.Longitude != nil {
		a.Longitude = update.Longitude
	}
	if update.IsActive != nil {
		a.IsActive = *update.IsActive
	}
	a.UpdatedAt = time.Now().UTC()
	m.agencies[id] = a
	return a, true, nil
}

func (m *MemoryStore) ListManagers(ctx context.Context, agencyID int64) ([]domain.PropertyManager, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.agencies[agencyID]; !ok {
		return nil, fmt.Errorf("agency %d: %w", agencyID, ErrNotFound)
	}
	var out []domain.PropertyManager
	for _, mgr := range m.managers {
		if mgr.AgencyID == agencyID {
			out = append(out, mgr)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].FullName()) < strings.ToLower(out[j].FullName())
	})
	return out, nil
}

func (m *MemoryStore) AddManager(ctx context.Context, agencyID int64, in domain.PersonInput) (domain.PropertyManager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agencies[agencyID]
	if !ok {
		return domain.PropertyManager{}, fmt.Errorf("agency %d: %w", agencyID, ErrNotFound)
	}
	if err := ValidatePerson(in); err != nil {
		return domain.PropertyManager{}, err
	}
	id := m.nextManager
	m.nextManager++
	now := time.Now().UTC()
	mgr := domain.PropertyManager{
		Person: domain.Person{
			ID: id, UID: newUID(),
			FirstName: strings.TrimSpace(in.FirstName),
			LastName:  strings.TrimSpace(in.LastName),
			Email:     strings.TrimSpace(in.Email),
			Phone:     strings.TrimSpace(in.Phone),
			Notes:     in.Notes,
			CreatedAt: now, UpdatedAt: now,
		},
		AgencyID: agencyID,
	}
	m.managers[id] = mgr
	a.ManagerIDs = append(a.ManagerIDs, id)
	a.UpdatedAt = now
	m.agencies[agencyID] = a
	return mgr, nil
}

func (m *MemoryStore) RemoveManager(ctx context.Context, agencyID, managerID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agencies[agencyID]
	if !ok {
		return false, nil
	}
	mgr, ok := m.managers[managerID]
	if !ok || mgr.AgencyID != agencyID {
		return false, nil
	}
	delete(m.managers, managerID)
	kept := a.ManagerIDs[:0]
	for _, id := range a.ManagerIDs {
		if id != managerID {
			kept = append(kept, id)
		}
	}
	a.ManagerIDs = kept
	a.UpdatedAt = time.Now().UTC()
	m.agencies[agencyID] = a
	return true, nil
}

func (m *MemoryStore) UpdateManager(ctx context.Context, id int64, update domain.UpdatePerson) (domain.PropertyManager, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mgr, ok := m.managers[id]
	if !ok {
		return domain.PropertyManager{}, false, nil
	}
	if err := ApplyPersonUpdate(&mgr.Person, update); err != nil {
		return domain.PropertyManager{}, false, err
	}
	m.managers[id] = mgr
	return mgr, true, nil
}

// Staff

func (m *MemoryStore) ListStaff(ctx context.Context, activeOnly bool) ([]domain.Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Staff, 0, len(m.staff))
	for _, s := range m.staff {
		if activeOnly && !s.IsActive {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].FullName()) < strings.ToLower(out[j].FullName())
	})
	return out, nil
}

func (m *MemoryStore) GetStaff(ctx context.Context, id int64) (domain.Staff, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.staff[id]
	return s, ok, nil
}

func (m *MemoryStore) GetStaffByEmail(ctx context.Context, email string) (domain.Staff, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.staff {
		if strings.EqualFold(s.Email, email) {
			return s, true, nil
		}
	}
	return domain.Staff{}, false, nil
}

func (m *MemoryStore) UpsertStaffByEmail(ctx context.Context, in domain.StaffInput) (domain.Staff, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return domain.Staff{}, FieldErrorf("email", "Email is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for id, s := range m.staff {
		if strings.EqualFold(s.Email, email) {
			if in.FirstName != "" {
				s.FirstName = in.FirstName
			}
			if in.LastName != "" {
				s.LastName = in.LastName
			}
			if in.Role != "" {
				s.Role = in.Role
			}
			if in.PasswordHash != "" {
				s.PasswordHash = in.PasswordHash
			}
			s.UpdatedAt = now
			m.staff[id] = s
			return s, nil
		}
	}
	id := m.nextStaff
	m.nextStaff++
	role := in.Role
	if role == "" {
		role = domain.RoleStaff
	}
	s := domain.Staff{
		ID:           id,
		UID:          newUID(),
		Email:        email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		IsActive:     true,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.staff[id] = s
	return s, nil
}

func (m *MemoryStore) SetStaffActive(ctx context.Context, id int64, active bool) (domain.Staff, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[id]
	if !ok {
		return domain.Staff{}, false, nil
	}
	s.IsActive = active
	s.UpdatedAt = time.Now().UTC()
	m.staff[id] = s
	return s, true, nil
}

// Suggestions

func (m *MemoryStore) SuggestTenants(ctx context.Context, q string, limit int) ([]domain.Suggestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pred := query.Search(q, TenantSearchFields)
	var out []domain.Suggestion
	for _, t := range m.tenants {
		if pred.Eval(personGetter(t.Person)) {
			out = append(out, domain.Suggestion{
				Value: strconv.FormatInt(t.ID, 10),
				Label: t.FullName(),
			})
		}
	}
	return capSuggestions(out, limit), nil
}

func (m *MemoryStore) SuggestProperties(ctx context.Context, q string, limit int) ([]domain.Suggestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pred := query.Search(q, []string{"street_number", "street_name", "suburb", "unit_number", "postcode"})
	var out []domain.Suggestion
	for _, p := range m.properties {
		if pred.Eval(m.propertyGetter(p)) {
			out = append(out, domain.Suggestion{
				Value: strconv.FormatInt(p.ID, 10),
				Label: p.Address(),
			})
		}
	}
	return capSuggestions(out, limit), nil
}

func (m *MemoryStore) SuggestAddresses(ctx context.Context, q string, limit int) ([]domain.Suggestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pred := query.Search(q, []string{"street_number", "street_name", "suburb", "postcode"})
	seen := map[string]bool{}
	var out []domain.Suggestion
	for _, p := range m.properties {
		if !pred.Eval(m.propertyGetter(p)) {
			continue
		}
		addr := p.Address()
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, domain.Suggestion{Value: addr, Label: addr})
	}
	return capSuggestions(out, limit), nil
}

func capSuggestions(s []domain.Suggestion, limit int) []domain.Suggestion {
	sort.Slice(s, func(i, j int) bool {
		return strings.ToLower(s[i].Label) < strings.ToLower(s[j].Label)
	})
	if limit > 0 && len(s) > limit {
		s = s[:limit]
	}
	if s == nil {
		s = []domain.Suggestion{}
	}
	return s
}

func (m *MemoryStore) DistinctSuburbs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.distinctLocked(func(p domain.Property) string { return p.Suburb }), nil
}

func (m *MemoryStore) DistinctPostcodes(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.distinctLocked(func(p domain.Property) string { return p.Postcode }), nil
}

func (m *MemoryStore) distinctLocked(pick func(domain.Property) string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, p := range m.properties {
		v := pick(p)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Close is a no-op for MemoryStore as it holds no external resources.
func (m *MemoryStore) Close() error {
	return nil
}
