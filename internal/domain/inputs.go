package domain

// CreateJob is the input for creating a service job.
type CreateJob struct {
	PropertyID          int64     `json:"property_id"`
	IssueTypeID         *int64    `json:"issue_type_id,omitempty"`
	Status              JobStatus `json:"status,omitempty"`
	Notes               string    `json:"notes,omitempty"`
	AllocationIDs       []int64   `json:"allocation_ids,omitempty"`
	TenantIDs           []int64   `json:"tenant_ids,omitempty"`
	IsCustomerContacted bool      `json:"is_customer_contacted,omitempty"`
}

// UpdateJob carries partial updates; nil fields are left unchanged.
type UpdateJob struct {
	Status              *JobStatus `json:"status,omitempty"`
	Notes               *string    `json:"notes,omitempty"`
	IssueTypeID         *int64     `json:"issue_type_id,omitempty"`
	AllocationIDs       *[]int64   `json:"allocation_ids,omitempty"`
	TenantIDs           *[]int64   `json:"tenant_ids,omitempty"`
	IsCustomerContacted *bool      `json:"is_customer_contacted,omitempty"`
	IsActive            *bool      `json:"is_active,omitempty"`
}

// CreateJobUpdate appends an entry to a job's history.
type CreateJobUpdate struct {
	JobID  int64     `json:"job_id"`
	Status JobStatus `json:"status"`
	Note   string    `json:"note,omitempty"`
}

// PersonInput carries the contact fields for owners, tenants and managers.
type PersonInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// UpdatePerson carries partial contact updates.
type UpdatePerson struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// CreateProperty is the input for creating a property. Exactly one of
// AgencyID or PrivateOwners must be provided.
type CreateProperty struct {
	UnitNumber    string        `json:"unit_number,omitempty"`
	StreetNumber  string        `json:"street_number"`
	StreetName    string        `json:"street_name"`
	Suburb        string        `json:"suburb"`
	State         string        `json:"state"`
	Postcode      string        `json:"postcode"`
	Country       string        `json:"country,omitempty"`
	Latitude      *float64      `json:"latitude,omitempty"`
	Longitude     *float64      `json:"longitude,omitempty"`
	AgencyID      *int64        `json:"agency_id,omitempty"`
	PrivateOwners []PersonInput `json:"private_owners,omitempty"`
	Tenants       []PersonInput `json:"tenants,omitempty"`
	// ForceCreate bypasses duplicate-address detection.
	ForceCreate bool `json:"force_create,omitempty"`
}

// UpdateProperty carries partial property updates. When AgencyID or
// PrivateOwners is present the ownership is replaced wholesale, and the
// exactly-one-owner rule is re-checked against the final state.
type UpdateProperty struct {
	UnitNumber    *string        `json:"unit_number,omitempty"`
	StreetNumber  *string        `json:"street_number,omitempty"`
	StreetName    *string        `json:"street_name,omitempty"`
	Suburb        *string        `json:"suburb,omitempty"`
	State         *string        `json:"state,omitempty"`
	Postcode      *string        `json:"postcode,omitempty"`
	Country       *string        `json:"country,omitempty"`
	Latitude      *float64       `json:"latitude,omitempty"`
	Longitude     *float64       `json:"longitude,omitempty"`
	IsActive      *bool          `json:"is_active,omitempty"`
	AgencyID      *int64         `json:"agency_id,omitempty"`
	ClearAgency   bool           `json:"clear_agency,omitempty"`
	PrivateOwners *[]PersonInput `json:"private_owners,omitempty"`
	Tenants       *[]PersonInput `json:"tenants,omitempty"`
}

// CreateAgency is the input for creating an agency.
type CreateAgency struct {
	Name         string   `json:"name"`
	Email        string   `json:"email,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	StreetNumber string   `json:"street_number,omitempty"`
	StreetName   string   `json:"street_name,omitempty"`
	Suburb       string   `json:"suburb,omitempty"`
	State        string   `json:"state,omitempty"`
	Postcode     string   `json:"postcode,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

// UpdateAgency carries partial agency updates.
type UpdateAgency struct {
	Name         *string  `json:"name,omitempty"`
	Email        *string  `json:"email,omitempty"`
	Phone        *string  `json:"phone,omitempty"`
	StreetNumber *string  `json:"street_number,omitempty"`
	StreetName   *string  `json:"street_name,omitempty"`
	Suburb       *string  `json:"suburb,omitempty"`
	State        *string  `json:"state,omitempty"`
	Postcode     *string  `json:"postcode,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	IsActive     *bool    `json:"is_active,omitempty"`
}

// CreateIssueType is the input for adding a lookup entry.
type CreateIssueType struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateIssueType carries partial issue-type updates.
type UpdateIssueType struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}
