package storage

import (
	"context"

	"alarmtrack/internal/domain"
)

// Store is the persistence interface for the tracker. List methods return
// the requested page window plus the total match count so handlers can build
// the pagination envelope. Multi-step mutations (ownership swaps, tenant
// replacement) are atomic within a single call.
type Store interface {
	// Service jobs
	ListJobs(ctx context.Context, q domain.JobListQuery) ([]domain.ServiceJob, int, error)
	CreateJob(ctx context.Context, in domain.CreateJob) (domain.ServiceJob, error)
	GetJob(ctx context.Context, id int64) (domain.ServiceJob, bool, error)
	UpdateJob(ctx context.Context, id int64, update domain.UpdateJob) (domain.ServiceJob, bool, error)
	// Job history is append-only; there are no update or delete operations.
	ListJobUpdates(ctx context.Context, jobID int64) ([]domain.JobUpdate, error)
	AppendJobUpdate(ctx context.Context, in domain.CreateJobUpdate, authorID *int64) (domain.JobUpdate, error)

	// Issue types
	ListIssueTypes(ctx context.Context, activeOnly bool) ([]domain.IssueType, error)
	CreateIssueType(ctx context.Context, in domain.CreateIssueType) (domain.IssueType, error)
	GetIssueType(ctx context.Context, id int64) (domain.IssueType, bool, error)
	UpdateIssueType(ctx context.Context, id int64, update domain.UpdateIssueType) (domain.IssueType, bool, error)

	// Properties
	ListProperties(ctx context.Context, q domain.PropertyListQuery) ([]domain.Property, int, error)
	CreateProperty(ctx context.Context, in domain.CreateProperty) (domain.Property, error)
	GetProperty(ctx context.Context, id int64) (domain.Property, bool, error)
	// FindPropertyByAddress matches on unit/street number/street name/suburb,
	// case-insensitively, for duplicate detection.
	FindPropertyByAddress(ctx context.Context, unit, number, street, suburb string) (domain.Property, bool, error)
	UpdateProperty(ctx context.Context, id int64, update domain.UpdateProperty) (domain.Property, bool, error)
	DeleteProperty(ctx context.Context, id int64) (bool, error)

	// Tenants. Removing a tenant's last property link deletes the tenant.
	ListTenants(ctx context.Context, q domain.PersonListQuery) ([]domain.Tenant, int, error)
	AddTenant(ctx context.Context, propertyID int64, in domain.PersonInput) (domain.Tenant, error)
	RemoveTenant(ctx context.Context, propertyID, tenantID int64) (bool, error)
	UpdateTenant(ctx context.Context, id int64, update domain.UpdatePerson) (domain.Tenant, bool, error)
	GetTenant(ctx context.Context, id int64) (domain.Tenant, bool, error)

	// Private owners. A property must always retain at least one owner.
	ListPrivateOwners(ctx context.Context, q domain.PersonListQuery) ([]domain.PrivateOwner, int, error)
	AddPrivateOwner(ctx context.Context, propertyID int64, in domain.PersonInput) (domain.PrivateOwner, error)
	RemovePrivateOwner(ctx context.Context, propertyID, ownerID int64) (bool, error)
	UpdatePrivateOwner(ctx context.Context, id int64, update domain.UpdatePerson) (domain.PrivateOwner, bool, error)
	GetPrivateOwner(ctx context.Context, id int64) (domain.PrivateOwner, bool, error)
	// SetPropertyAgency switches the property to agency ownership, clearing
	// any private owners. A nil agencyID reverts to private ownership and
	// requires existing private owners.
	SetPropertyAgency(ctx context.Context, propertyID int64, agencyID *int64) (domain.Property, bool, error)

	// Agencies
	ListAgencies(ctx context.Context, q domain.PersonListQuery) ([]domain.Agency, int, error)
	CreateAgency(ctx context.Context, in domain.CreateAgency) (domain.Agency, error)
	GetAgency(ctx context.Context, id int64) (domain.Agency, bool, error)
	UpdateAgency(ctx context.Context, id int64, update domain.UpdateAgency) (domain.Agency, bool, error)
	ListManagers(ctx context.Context, agencyID int64) ([]domain.PropertyManager, error)
	AddManager(ctx context.Context, agencyID int64, in domain.PersonInput) (domain.PropertyManager, error)
	RemoveManager(ctx context.Context, agencyID, managerID int64) (bool, error)
	UpdateManager(ctx context.Context, id int64, update domain.UpdatePerson) (domain.PropertyManager, bool, error)

	// Staff users, provisioned by the auth layer on first verified token.
	ListStaff(ctx context.Context, activeOnly bool) ([]domain.Staff, error)
	GetStaff(ctx context.Context, id int64) (domain.Staff, bool, error)
	GetStaffByEmail(ctx context.Context, email string) (domain.Staff, bool, error)
	UpsertStaffByEmail(ctx context.Context, in domain.StaffInput) (domain.Staff, error)
	SetStaffActive(ctx context.Context, id int64, active bool) (domain.Staff, bool, error)

	// Typeahead and distinct-value lookups
	SuggestTenants(ctx context.Context, q string, limit int) ([]domain.Suggestion, error)
	SuggestProperties(ctx context.Context, q string, limit int) ([]domain.Suggestion, error)
	SuggestAddresses(ctx context.Context, q string, limit int) ([]domain.Suggestion, error)
	DistinctSuburbs(ctx context.Context) ([]string, error)
	DistinctPostcodes(ctx context.Context) ([]string, error)

	// Close releases resources held by the store
	Close() error
}
