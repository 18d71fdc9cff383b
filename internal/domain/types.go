package domain

import "time"

// JobStatus is the workflow state of a service job. Any status may follow any
// other; completed and cancelled are terminal by convention only.
type JobStatus string

const (
	StatusNew              JobStatus = "new"
	StatusRequiresCallBack JobStatus = "requires_call_back"
	StatusAwaitingResponse JobStatus = "awaiting_response"
	StatusToBeScheduled    JobStatus = "to_be_scheduled"
	StatusToBeQuoted       JobStatus = "to_be_quoted"
	StatusCompleted        JobStatus = "completed"
	StatusCancelled        JobStatus = "cancelled"
)

// Valid reports whether s is one of the known job statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusNew, StatusRequiresCallBack, StatusAwaitingResponse,
		StatusToBeScheduled, StatusToBeQuoted, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal status.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// OwnerType discriminates how a property is owned.
type OwnerType string

const (
	OwnerAgency  OwnerType = "agency"
	OwnerPrivate OwnerType = "private"
)

// Agency is a real-estate agency that manages properties.
type Agency struct {
	ID           int64     `json:"id"`
	UID          string    `json:"uid"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	StreetNumber string    `json:"street_number,omitempty"`
	StreetName   string    `json:"street_name,omitempty"`
	Suburb       string    `json:"suburb,omitempty"`
	State        string    `json:"state,omitempty"`
	Postcode     string    `json:"postcode,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	IsActive     bool      `json:"is_active"`
	ManagerIDs   []int64   `json:"manager_ids,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Person holds the contact fields shared by private owners, tenants and
// property managers.
type Person struct {
	ID        int64     `json:"id"`
	UID       string    `json:"uid"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns "First Last" with single-name fallbacks.
func (p Person) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// PrivateOwner is an individual who owns one or more properties directly.
type PrivateOwner struct {
	Person
}

// Tenant occupies a property. A tenant with no remaining property links is
// removed from storage.
type Tenant struct {
	Person
}

// PropertyManager is a staff contact at an agency.
type PropertyManager struct {
	Person
	AgencyID int64 `json:"agency_id"`
}

// Property is a serviced address. It is owned by exactly one of an agency or
// at least one private owner, never both and never neither.
type Property struct {
	ID              int64     `json:"id"`
	UID             string    `json:"uid"`
	UnitNumber      string    `json:"unit_number,omitempty"`
	StreetNumber    string    `json:"street_number"`
	StreetName      string    `json:"street_name"`
	Suburb          string    `json:"suburb"`
	State           string    `json:"state"`
	Postcode        string    `json:"postcode"`
	Country         string    `json:"country,omitempty"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	AgencyID        *int64    `json:"agency_id,omitempty"`
	PrivateOwnerIDs []int64   `json:"private_owner_ids,omitempty"`
	TenantIDs       []int64   `json:"tenant_ids,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OwnedByAgency reports whether the property is agency-managed.
func (p Property) OwnedByAgency() bool { return p.AgencyID != nil }

// Address renders the single-line display address.
func (p Property) Address() string {
	out := ""
	if p.UnitNumber != "" {
		out = "Unit " + p.UnitNumber + ", "
	}
	out += p.StreetNumber + " " + p.StreetName + ", " + p.Suburb
	if p.State != "" {
		out += ", " + p.State
	}
	if p.Postcode != "" {
		out += ", " + p.Postcode
	}
	return out
}

// IssueType is a lookup-table entry categorising service jobs.
type IssueType struct {
	ID          int64     `json:"id"`
	UID         string    `json:"uid"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ServiceJob is a smoke-alarm callout against a property.
type ServiceJob struct {
	ID                  int64     `json:"id"`
	UID                 string    `json:"uid"`
	Status              JobStatus `json:"status"`
	Notes               string    `json:"notes,omitempty"`
	PropertyID          int64     `json:"property_id"`
	IssueTypeID         *int64    `json:"issue_type_id,omitempty"`
	AgencyID            *int64    `json:"agency_id,omitempty"`
	PrivateOwnerID      *int64    `json:"private_owner_id,omitempty"`
	TenantIDs           []int64   `json:"tenant_ids,omitempty"`
	AllocationIDs       []int64   `json:"allocation_ids,omitempty"`
	IsCustomerContacted bool      `json:"is_customer_contacted"`
	IsActive            bool      `json:"is_active"`
	IsAgency            bool      `json:"is_agency"`
	IsPrivateOwner      bool      `json:"is_private_owner"`
	IsCompleted         bool      `json:"is_completed"`
	IsCancelled         bool      `json:"is_cancelled"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// SyncCompletionFlags derives is_completed/is_cancelled from the status so
// the two flags can never both be set.
func (j *ServiceJob) SyncCompletionFlags() {
	j.IsCompleted = j.Status == StatusCompleted
	j.IsCancelled = j.Status == StatusCancelled
}

// Staff roles.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Staff is a local user record provisioned from the identity provider on
// first sight of a verified token. Email is the join key.
type Staff struct {
	ID           int64     `json:"id"`
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName returns "First Last" with the email as a fallback.
func (s Staff) FullName() string {
	switch {
	case s.FirstName == "" && s.LastName == "":
		return s.Email
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// StaffInput provisions or refreshes a staff record.
type StaffInput struct {
	Email        string `json:"email"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Role         string `json:"role,omitempty"`
	PasswordHash string `json:"-"`
}

// JobUpdate is an append-only record of a status change or note on a job.
// Updates are never edited or deleted.
type JobUpdate struct {
	ID        int64     `json:"id"`
	UID       string    `json:"uid"`
	JobID     int64     `json:"job_id"`
	Status    JobStatus `json:"status"`
	Note      string    `json:"note,omitempty"`
	AuthorID  *int64    `json:"author_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
